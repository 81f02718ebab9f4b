package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the s3conform banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"       _____                    __                      ", "#f59e0b"},
		{"  ___ |___ / ___ ___  _ __  / _| ___  _ __ _ __ ___   ", "#f97316"},
		{" / __|  |_ \\/ __/ _ \\| '_ \\| |_ / _ \\| '__| '_ ` _ \\  ", "#ef4444"},
		{" \\__ \\ ___) | (_| (_) | | | |  _| (_) | |  | | | | | | ", "#ec4899"},
		{" |___/|____/ \\___\\___/|_| |_|_|  \\___/|_|  |_| |_| |_| ", "#a855f7"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
