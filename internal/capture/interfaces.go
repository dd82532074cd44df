package capture

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/gopacket/pcap"
)

// ListInterfaces enumerates capture-capable devices.
func ListInterfaces() ([]pcap.Interface, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	return devs, nil
}

// PromptInterface prints a numbered device listing to w and reads a
// selection from r.
func PromptInterface(r io.Reader, w io.Writer) (string, error) {
	devs, err := ListInterfaces()
	if err != nil {
		return "", err
	}
	fmt.Fprintln(w, "[*] Available network interfaces:")
	for i, d := range devs {
		desc := d.Description
		if desc == "" {
			desc = "no description"
		}
		fmt.Fprintf(w, "\t%d. %s (%s)\n", i+1, d.Name, desc)
	}
	fmt.Fprint(w, "\nEnter interface number or name: ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read interface selection: %w", err)
		}
		return "", fmt.Errorf("no interface selected")
	}
	return selectInterface(devs, scanner.Text())
}

// selectInterface resolves a typed choice against the device listing: a
// number picks from the listing, anything else is taken as a device name.
func selectInterface(devs []pcap.Interface, choice string) (string, error) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return "", fmt.Errorf("no interface selected")
	}
	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(devs) {
			return "", fmt.Errorf("interface number %d out of range (1-%d)", n, len(devs))
		}
		return devs[n-1].Name, nil
	}
	return choice, nil
}
