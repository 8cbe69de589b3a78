package notify

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/handlescan/handlescan/internal/model"
)

// Console is a NotifySink that prints results as they arrive.
//
// By default only claimed handles are printed, which keeps the output to the
// list most callers actually want: where does this username exist. With
// print-all enabled every result is shown with a status marker.
type Console struct {
	// mu guards writes. The engine updates from one goroutine, but a
	// Console may be reused across consecutive runs.
	mu sync.Mutex

	// out receives all rendered lines.
	out io.Writer

	// printAll shows available/unknown/illegal results, not just claimed.
	printAll bool

	// noColor disables ANSI colors.
	noColor bool

	// claimed counts claimed results for the closing summary.
	claimed int

	// total counts all results for the closing summary.
	total int

	// startedAt is when the current run began.
	startedAt time.Time
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithPrintAll shows every result instead of only the claimed ones.
func WithPrintAll() ConsoleOption {
	return func(c *Console) {
		c.printAll = true
	}
}

// WithoutColor disables ANSI colors, for pipes and dumb terminals.
func WithoutColor() ConsoleOption {
	return func(c *Console) {
		c.noColor = true
	}
}

// NewConsole creates a console sink writing to out.
func NewConsole(out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{out: out}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start implements model.NotifySink.
func (c *Console) Start(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.claimed = 0
	c.total = 0
	c.startedAt = time.Now()

	if c.noColor {
		fmt.Fprintf(c.out, "[*] Checking username %s\n", username)
		return
	}
	fmt.Fprintf(c.out, "[%s] Checking username %s\n",
		color.HiGreenString("*"), color.HiWhiteString(username))
}

// Update implements model.NotifySink.
func (c *Console) Update(result model.QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total++
	if result.Status == model.StatusClaimed {
		c.claimed++
	}

	switch result.Status {
	case model.StatusClaimed:
		if c.noColor {
			fmt.Fprintf(c.out, "[+] %s: %s\n", result.SiteName, result.UserURL)
			return
		}
		fmt.Fprintf(c.out, "[%s] %s: %s\n",
			color.HiGreenString("+"), color.HiWhiteString(result.SiteName), result.UserURL)

	case model.StatusAvailable:
		if !c.printAll {
			return
		}
		if c.noColor {
			fmt.Fprintf(c.out, "[-] %s: Available\n", result.SiteName)
			return
		}
		fmt.Fprintf(c.out, "[%s] %s: %s\n",
			color.HiRedString("-"), result.SiteName, color.HiYellowString("Available"))

	case model.StatusIllegal:
		if !c.printAll {
			return
		}
		if c.noColor {
			fmt.Fprintf(c.out, "[x] %s: Illegal username format\n", result.SiteName)
			return
		}
		fmt.Fprintf(c.out, "[%s] %s: %s\n",
			color.HiRedString("x"), result.SiteName, color.HiMagentaString("Illegal username format"))

	default: // StatusUnknown
		if !c.printAll {
			return
		}
		detail := result.Context
		if detail == "" {
			detail = "Unknown"
		}
		if c.noColor {
			fmt.Fprintf(c.out, "[?] %s: %s\n", result.SiteName, detail)
			return
		}
		fmt.Fprintf(c.out, "[%s] %s: %s\n",
			color.HiRedString("?"), result.SiteName, color.HiRedString(detail))
	}
}

// Finish implements model.NotifySink.
func (c *Console) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.startedAt).Round(time.Millisecond)
	if c.noColor {
		fmt.Fprintf(c.out, "[*] %d of %d sites claimed (%s)\n", c.claimed, c.total, elapsed)
		return
	}
	fmt.Fprintf(c.out, "[%s] %s of %d sites claimed (%s)\n",
		color.HiGreenString("*"),
		color.HiWhiteString(fmt.Sprintf("%d", c.claimed)),
		c.total,
		elapsed,
	)
}
