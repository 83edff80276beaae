package dispatcher

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/QianrenLi/stream-replay/internal/config"
)

func TestAccessCategoryFromToS(t *testing.T) {
	require.Equal(t, ACBestEffort, AccessCategoryFromToS(0x00))
	require.Equal(t, ACBackground, AccessCategoryFromToS(0x20))
	require.Equal(t, ACBackground, AccessCategoryFromToS(0x40))
	require.Equal(t, ACBestEffort, AccessCategoryFromToS(0x60))
	require.Equal(t, ACVoice, AccessCategoryFromToS(0xE0))
}

func TestBuildCreatesOneSocketPerLink(t *testing.T) {
	links := []config.Link{
		{TxIPAddr: "127.0.0.1", RxIPAddr: "127.0.0.1:9001"},
		{TxIPAddr: "127.0.0.1", RxIPAddr: "127.0.0.1:9002"},
	}
	table, err := Build(links, 0x20)
	require.NoError(t, err)
	defer table.Close()
	require.Len(t, table, 2)
	require.Equal(t, "127.0.0.1:9001", table[0].RxAddr.String())
	require.Equal(t, "127.0.0.1:9002", table[1].RxAddr.String())
}

func TestBuildFailsOnBadRxAddr(t *testing.T) {
	links := []config.Link{
		{TxIPAddr: "127.0.0.1", RxIPAddr: "not-an-address"},
	}
	_, err := Build(links, 0)
	require.Error(t, err)
}

func TestSendToDeliversOverLoopback(t *testing.T) {
	rx, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer rx.Close()

	tx, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer tx.Close()
	ls := LinkSocket{Conn: tx, RxAddr: rx.LocalAddr().(*net.UDPAddr)}

	wouldBlock, err := ls.SendTo([]byte("hello"), rx.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	require.False(t, wouldBlock)

	buf := make([]byte, 16)
	rx.SetReadDeadline(time.Now().Add(time.Second))
	n, err := rx.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}
