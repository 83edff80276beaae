// Package dispatcher builds the per-stream {link-index -> (socket,
// peer address)} table: one non-blocking UDP socket per managed link,
// bound to its tx address and marked with the stream's 802.11e access
// category (spec.md §4.11).
package dispatcher

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/QianrenLi/stream-replay/internal/config"
)

// AccessCategory is the IEEE 802.11e queue a socket's traffic is
// tagged into.
type AccessCategory int

const (
	ACVoice AccessCategory = iota
	ACVideo
	ACBestEffort
	ACBackground
)

// AccessCategoryFromToS maps the top 3 bits of a ToS byte to its
// 802.11e access category (spec.md §4.1).
func AccessCategoryFromToS(tos uint8) AccessCategory {
	switch tos >> 5 {
	case 1, 2:
		return ACBackground
	case 0, 3:
		return ACBestEffort
	case 4, 5:
		return ACVideo
	default:
		return ACVoice
	}
}

// LinkSocket is one managed link's non-blocking send socket and the
// peer address fragments for it are sent to.
type LinkSocket struct {
	Conn    *net.UDPConn
	RxAddr  *net.UDPAddr
	TxAddr  string
}

// Table is the {link-index -> LinkSocket} mapping built once per
// stream at startup.
type Table []LinkSocket

// Build creates one non-blocking UDP socket per link, bound to its
// tx_ipaddr and tagged with tos via IP_TOS, in link order. On any
// socket-creation failure it closes sockets already opened and returns
// the error; it does not partially publish a table.
func Build(links []config.Link, tos uint8) (Table, error) {
	table := make(Table, 0, len(links))
	for i, link := range links {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(link.TxIPAddr), Port: 0})
		if err != nil {
			closeAll(table)
			return nil, fmt.Errorf("dispatcher: link %d socket: %w", i, err)
		}
		if err := setToS(conn, tos); err != nil {
			closeAll(table)
			conn.Close()
			return nil, fmt.Errorf("dispatcher: link %d set tos: %w", i, err)
		}
		rxAddr, err := net.ResolveUDPAddr("udp", link.RxIPAddr)
		if err != nil {
			closeAll(table)
			conn.Close()
			return nil, fmt.Errorf("dispatcher: link %d rx addr: %w", i, err)
		}
		table = append(table, LinkSocket{Conn: conn, RxAddr: rxAddr, TxAddr: link.TxIPAddr})
	}
	return table, nil
}

func closeAll(table Table) {
	for _, ls := range table {
		ls.Conn.Close()
	}
}

// setToS sets the socket's IP_TOS option via its raw file descriptor.
func setToS(conn *net.UDPConn, tos uint8) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, int(tos))
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Close releases every socket in the table.
func (t Table) Close() {
	closeAll(t)
}

// SendTo performs a single non-blocking send of buf to addr on this
// link's socket. Go's net.Conn has no such primitive: net.UDPConn.Write
// always parks the calling goroutine in the runtime netpoller and
// retries internally until the socket is writable, so it never
// surfaces EWOULDBLOCK to the caller. SendTo instead drives the raw
// file descriptor directly with a single unix.Sendto and reports a
// full send buffer (EAGAIN) as wouldBlock=true rather than blocking or
// retrying, matching the one-non-blocking-attempt-per-fragment send
// spec.md §4.6 requires.
func (ls LinkSocket) SendTo(buf []byte, addr *net.UDPAddr) (wouldBlock bool, err error) {
	raw, err := ls.Conn.SyscallConn()
	if err != nil {
		return false, err
	}
	sa, err := sockaddrFromUDPAddr(addr)
	if err != nil {
		return false, err
	}

	var sendErr error
	ctrlErr := raw.Write(func(fd uintptr) bool {
		sendErr = unix.Sendto(int(fd), buf, 0, sa)
		// Returning true tells the runtime poller this attempt is
		// final: never wait for writability and retry internally,
		// even on EAGAIN. That is what makes this a true single
		// non-blocking attempt rather than a parked blocking send.
		return true
	})
	if ctrlErr != nil {
		return false, ctrlErr
	}
	if errors.Is(sendErr, unix.EAGAIN) || errors.Is(sendErr, unix.EWOULDBLOCK) {
		return true, nil
	}
	return false, sendErr
}

// sockaddrFromUDPAddr converts a resolved *net.UDPAddr into the
// unix.Sockaddr unix.Sendto needs, supporting both IPv4 and IPv6
// peers.
func sockaddrFromUDPAddr(addr *net.UDPAddr) (unix.Sockaddr, error) {
	if ip4 := addr.IP.To4(); ip4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = addr.Port
		copy(sa.Addr[:], ip4)
		return &sa, nil
	}
	ip6 := addr.IP.To16()
	if ip6 == nil {
		return nil, fmt.Errorf("dispatcher: invalid peer address %v", addr.IP)
	}
	var sa unix.SockaddrInet6
	sa.Port = addr.Port
	copy(sa.Addr[:], ip6)
	return &sa, nil
}
