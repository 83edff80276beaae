package cmd

import "strconv"

func parseFloatArg(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseUintArg(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 32)
}
