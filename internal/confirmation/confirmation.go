// Package confirmation prompts the user before overwriting restores.
package confirmation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"backup-dr/internal/backup"
	"backup-dr/internal/display"
)

// Service handles interactive confirmation for destructive restores
type Service struct {
	colors *display.ColorSystem
	in     io.Reader
	out    io.Writer
}

// NewService creates a confirmation Service reading from stdin
func NewService(colors *display.ColorSystem) *Service {
	return &Service{
		colors: colors,
		in:     os.Stdin,
		out:    os.Stdout,
	}
}

// NewServiceWithIO creates a Service for tests over arbitrary streams
func NewServiceWithIO(colors *display.ColorSystem, in io.Reader, out io.Writer) *Service {
	return &Service{colors: colors, in: in, out: out}
}

// ConfirmRestore summarizes an overwriting restore and asks for approval.
// With autoApprove set the prompt is skipped. Interrupt cancels.
func (s *Service) ConfirmRestore(backupID string, conflicts []backup.Conflict, autoApprove bool) (bool, error) {
	s.displaySummary(backupID, conflicts)

	if autoApprove {
		fmt.Fprintln(s.out, s.colors.Sprint(display.ColorSuccess, "Auto-approving restore"))
		return true, nil
	}

	interruptChan := make(chan os.Signal, 1)
	signal.Notify(interruptChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interruptChan)

	inputChan := make(chan string, 1)
	errorChan := make(chan error, 1)
	go func() {
		input, err := s.prompt()
		if err != nil {
			errorChan <- err
			return
		}
		inputChan <- input
	}()

	select {
	case <-interruptChan:
		fmt.Fprintln(s.out, s.colors.Sprint(display.ColorWarning, "Restore cancelled"))
		return false, nil
	case err := <-errorChan:
		return false, fmt.Errorf("failed to read user input: %w", err)
	case input := <-inputChan:
		return s.parse(input), nil
	}
}

func (s *Service) displaySummary(backupID string, conflicts []backup.Conflict) {
	fmt.Fprintf(s.out, "Restoring from %s\n", s.colors.Sprint(display.ColorInfo, backupID))
	if len(conflicts) == 0 {
		return
	}

	fmt.Fprintln(s.out, s.colors.Sprintf(display.ColorWarning,
		"%d existing file(s) will be overwritten:", len(conflicts)))
	for _, c := range conflicts {
		fmt.Fprintf(s.out, "  %s\n", c.Path)
	}
}

func (s *Service) prompt() (string, error) {
	fmt.Fprint(s.out, "Proceed with restore? [y/N]: ")

	reader := bufio.NewReader(s.in)
	input, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (s *Service) parse(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
