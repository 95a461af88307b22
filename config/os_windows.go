//go:build windows

package config

import (
	"os"
	"strings"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
	"golang.org/x/term"
)

// CleanFileName removes characters not allowed in file names.
func CleanFileName(in string) string {
	const forbidden = `<>":/\|?*`
	out := strings.Map(func(sym rune) rune {
		if sym == 0 || sym == os.PathListSeparator || strings.ContainsRune(forbidden, sym) {
			return -1
		}
		return sym
	}, in)
	if len(out) == 0 {
		return "_bad_file_name_"
	}
	return out
}

// EnableColorOutput checks if colorized output is possible and turns on VT100
// sequence processing for Windows 10 and later consoles.
func EnableColorOutput(stream *os.File) bool {
	if !term.IsTerminal(int(stream.Fd())) {
		return false
	}

	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows NT\CurrentVersion`, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	defer k.Close()
	if major, _, err := k.GetIntegerValue("CurrentMajorVersionNumber"); err != nil || major < 10 {
		return false
	}

	const enableVirtualTerminalProcessing uint32 = 0x4

	var mode uint32
	handle := windows.Handle(stream.Fd())
	if err := windows.GetConsoleMode(handle, &mode); err != nil {
		return false
	}
	return windows.SetConsoleMode(handle, mode|enableVirtualTerminalProcessing) == nil
}
