package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"vitals/internal/gate"
	"vitals/internal/oauth"
	"vitals/internal/vault"

	"github.com/chzyer/readline"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ErrPromptClosed is returned when input ends before the user answered.
var ErrPromptClosed = errors.New("prompt closed")

// LineReader is the subset of *readline.Instance the prompter uses.
type LineReader interface {
	Readline() (string, error)
	ReadPassword(prompt string) ([]byte, error)
	SetPrompt(prompt string)
}

// TerminalPrompter answers gate prompts on a terminal.
type TerminalPrompter struct {
	in          LineReader
	out         io.Writer
	openBrowser func(string) error
}

// NewTerminalPrompter creates a prompter reading from the process terminal.
// The returned close function releases the terminal.
func NewTerminalPrompter(out io.Writer) (*TerminalPrompter, func() error, error) {
	rl, err := readline.NewEx(&readline.Config{
		InterruptPrompt: "^C",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	return NewPrompter(rl, out, oauth.OpenBrowser), rl.Close, nil
}

// NewPrompter creates a prompter over any LineReader.
func NewPrompter(in LineReader, out io.Writer, openBrowser func(string) error) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out, openBrowser: openBrowser}
}

var _ gate.Prompter = (*TerminalPrompter)(nil)

// Welcome implements gate.Prompter.
func (p *TerminalPrompter) Welcome(ctx context.Context) (gate.WelcomeChoice, error) {
	fmt.Fprintln(p.out, text.Bold.Sprint("Welcome to Vitals! To get started, please sign in with your GitHub account."))
	idx, err := p.choose(ctx, []string{"Sign In with GitHub", "Learn More", "Not now"})
	if err != nil {
		return gate.ChoiceDecline, err
	}
	return []gate.WelcomeChoice{gate.ChoiceSignIn, gate.ChoiceLearnMore, gate.ChoiceDecline}[idx], nil
}

// SignInFailed implements gate.Prompter.
func (p *TerminalPrompter) SignInFailed(ctx context.Context, cause error) (gate.FailureChoice, error) {
	fmt.Fprintf(p.out, "%s %v\n", text.FgRed.Sprint("GitHub authentication failed:"), cause)
	if errors.Is(cause, oauth.ErrMissingCredential) {
		fmt.Fprintln(p.out, "OAuth client credentials are not configured yet.")
	}
	idx, err := p.choose(ctx, []string{"Retry", "Configure OAuth First", "Cancel"})
	if err != nil {
		return gate.FailureAbort, err
	}
	return []gate.FailureChoice{gate.FailureRetry, gate.FailureConfigure, gate.FailureAbort}[idx], nil
}

// ConfigureCredentials implements gate.Prompter.
func (p *TerminalPrompter) ConfigureCredentials(ctx context.Context) (vault.Credential, bool, error) {
	fmt.Fprintln(p.out, "Enter the Client ID and Client Secret of your GitHub OAuth App.")

	p.in.SetPrompt("GitHub OAuth Client ID: ")
	id, err := p.in.Readline()
	if err != nil {
		return vault.Credential{}, false, p.inputErr(err)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		fmt.Fprintln(p.out, text.FgYellow.Sprint("Client ID is required; nothing saved."))
		return vault.Credential{}, false, nil
	}

	secret, err := p.in.ReadPassword("GitHub OAuth Client Secret: ")
	if err != nil {
		return vault.Credential{}, false, p.inputErr(err)
	}
	if strings.TrimSpace(string(secret)) == "" {
		fmt.Fprintln(p.out, text.FgYellow.Sprint("Client Secret is required; nothing saved."))
		return vault.Credential{}, false, nil
	}

	if err := ctx.Err(); err != nil {
		return vault.Credential{}, false, err
	}
	return vault.Credential{ClientID: id, ClientSecret: string(secret)}, true, nil
}

// OpenLearnMore implements gate.Prompter.
func (p *TerminalPrompter) OpenLearnMore(url string) error {
	fmt.Fprintf(p.out, "Opening %s\n", url)
	return p.openBrowser(url)
}

// Notify implements gate.Prompter.
func (p *TerminalPrompter) Notify(message string) {
	fmt.Fprintln(p.out, message)
}

// choose shows a numbered menu and returns the picked index. Options can be
// picked by number or by a case-insensitive prefix of their label.
func (p *TerminalPrompter) choose(ctx context.Context, options []string) (int, error) {
	for i, opt := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, opt)
	}
	p.in.SetPrompt(fmt.Sprintf("Choose [1-%d]: ", len(options)))

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		line, err := p.in.Readline()
		if err != nil {
			return 0, p.inputErr(err)
		}
		if idx, ok := matchOption(strings.TrimSpace(line), options); ok {
			return idx, nil
		}
		fmt.Fprintf(p.out, "Please enter a number between 1 and %d.\n", len(options))
	}
}

func matchOption(answer string, options []string) (int, bool) {
	if answer == "" {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(answer, "%d", &n); err == nil && fmt.Sprint(n) == answer {
		if n >= 1 && n <= len(options) {
			return n - 1, true
		}
		return 0, false
	}
	lower := strings.ToLower(answer)
	for i, opt := range options {
		if strings.HasPrefix(strings.ToLower(opt), lower) {
			return i, true
		}
	}
	return 0, false
}

func (p *TerminalPrompter) inputErr(err error) error {
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return ErrPromptClosed
	}
	return err
}

// DeclinePrompter answers every gate prompt negatively. It is used when
// input is disabled, so protected commands fail fast instead of blocking.
type DeclinePrompter struct {
	out io.Writer
}

// NewDeclinePrompter creates a DeclinePrompter that prints notices to out.
func NewDeclinePrompter(out io.Writer) *DeclinePrompter {
	return &DeclinePrompter{out: out}
}

var _ gate.Prompter = (*DeclinePrompter)(nil)

// Welcome implements gate.Prompter.
func (p *DeclinePrompter) Welcome(context.Context) (gate.WelcomeChoice, error) {
	return gate.ChoiceDecline, nil
}

// SignInFailed implements gate.Prompter.
func (p *DeclinePrompter) SignInFailed(_ context.Context, cause error) (gate.FailureChoice, error) {
	fmt.Fprintf(p.out, "%s %v\n", text.FgRed.Sprint("GitHub authentication failed:"), cause)
	return gate.FailureAbort, nil
}

// ConfigureCredentials implements gate.Prompter.
func (p *DeclinePrompter) ConfigureCredentials(context.Context) (vault.Credential, bool, error) {
	return vault.Credential{}, false, nil
}

// OpenLearnMore implements gate.Prompter.
func (p *DeclinePrompter) OpenLearnMore(string) error { return nil }

// Notify implements gate.Prompter.
func (p *DeclinePrompter) Notify(message string) {
	fmt.Fprintln(p.out, message)
}
