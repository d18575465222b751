package main

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"peeler-go/internal/fixed"
)

func readLine(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	line := readLine(reader, label, strconv.FormatFloat(current, 'f', 2, 64))
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptInt(reader *bufio.Reader, label string, current int) int {
	line := readLine(reader, label, strconv.Itoa(current))
	if line == "" {
		return current
	}
	val, err := strconv.Atoi(line)
	if err != nil {
		fmt.Printf("invalid integer, keeping %d\n", current)
		return current
	}
	return val
}

func promptPoint(reader *bufio.Reader, label string, current fixed.Point) fixed.Point {
	line := readLine(reader, label, current.String())
	if line == "" {
		return current
	}
	val, err := fixed.Parse(line)
	if err != nil {
		fmt.Printf("invalid decimal, keeping %s\n", current)
		return current
	}
	return val
}

func promptChoice(reader *bufio.Reader, label, current string, options ...string) string {
	line := strings.ToLower(readLine(reader, label+" ("+strings.Join(options, "/")+")", current))
	if line == "" {
		return current
	}
	for _, opt := range options {
		if line == opt {
			return opt
		}
	}
	fmt.Printf("unknown option, keeping %s\n", current)
	return current
}

// promptList reads a comma-separated list; blank keeps the current one.
func promptList(reader *bufio.Reader, label string, current []string) []string {
	line := readLine(reader, label, strings.Join(current, ", "))
	if line == "" {
		return current
	}
	var out []string
	for _, p := range strings.Split(line, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return current
	}
	return out
}
