package proc

import (
	"os"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// openPTY allocates a pseudo-terminal pair sized like the controlling
// terminal, if there is one.
func openPTY() (master, tty *os.File, err error) {
	master, tty, err = pty.Open()
	if err != nil {
		return nil, nil, err
	}
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		_ = pty.Setsize(master, &pty.Winsize{Cols: uint16(w), Rows: uint16(h)})
	}
	return master, tty, nil
}
