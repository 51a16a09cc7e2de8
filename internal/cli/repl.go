// Package cli is an interactive terminal for practising coding questions against the portal backend.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/victornm/portal/internal/catalog"
	"github.com/victornm/portal/internal/compiler"
	"github.com/victornm/portal/internal/domain"
	"github.com/victornm/portal/internal/errors"
)

const codeTerminator = "."

type Lister interface {
	ListQuestions(ctx context.Context, req catalog.ListQuestionsRequest) ([]domain.QuestionSummary, error)
}

type Config struct {
	ApplicantID domain.ID
	Catalog     Lister
	Session     *compiler.Session
	HistoryFile string
	Out         io.Writer
}

// REPL reads commands line by line and drives a compiler session with them.
type REPL struct {
	applicantID domain.ID
	catalog     Lister
	session     *compiler.Session
	history     string
	out         io.Writer

	in       lineReader
	commands map[string]command
}

type lineReader interface {
	Readline() (string, error)
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

var errExit = stderrors.New("exit")

func New(c Config) *REPL {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		applicantID: c.ApplicantID,
		catalog:     c.Catalog,
		session:     c.Session,
		history:     c.HistoryFile,
		out:         out,
	}

	r.commands = map[string]command{
		"list":   {usage: "list", help: "list the coding questions", run: r.list},
		"open":   {usage: "open <id>", help: "open a question, dropping the previous one", run: r.open},
		"reload": {usage: "reload", help: "fetch the open question again", run: r.reload},
		"show":   {usage: "show", help: "show the question, code, outputs and score", run: r.show},
		"lang":   {usage: "lang <java|python>", help: "switch language and load its starter code", run: r.lang},
		"load":   {usage: "load <file>", help: "replace the code with the content of a file", run: r.load},
		"code":   {usage: "code", help: "type new code, ending with a line containing only " + codeTerminator, run: r.code},
		"run":    {usage: "run", help: "run the code against every test case", run: r.run},
		"submit": {usage: "submit", help: "score the latest outputs and record the solution", run: r.submit},
		"help":   {usage: "help", help: "show this help", run: r.help},
		"exit":   {usage: "exit", help: "leave", run: func(context.Context, []string) error { return errExit }},
	}

	return r
}

// Run reads commands from the terminal until exit, EOF or an interrupt on an empty line.
func (r *REPL) Run(ctx context.Context) error {
	items := make([]readline.PrefixCompleterInterface, 0, len(r.commands))
	for _, name := range r.commandNames() {
		if name == "lang" {
			langs := make([]readline.PrefixCompleterInterface, 0, len(domain.Languages()))
			for _, l := range domain.Languages() {
				langs = append(langs, readline.PcItem(string(l)))
			}
			items = append(items, readline.PcItem(name, langs...))
			continue
		}
		items = append(items, readline.PcItem(name))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "portal> ",
		HistoryFile:     r.history,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          r.out,
	})
	if err != nil {
		return fmt.Errorf("cli: init readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	return r.serve(ctx, rl)
}

func (r *REPL) serve(ctx context.Context, in lineReader) error {
	r.in = in
	r.printf("Practice session for applicant %s. Type help for commands.\n", r.applicantID)

	for {
		line, err := in.Readline()
		switch {
		case stderrors.Is(err, readline.ErrInterrupt):
			if strings.TrimSpace(line) == "" {
				return nil
			}
			continue
		case stderrors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("cli: read line: %w", err)
		}

		if err := r.exec(ctx, line); err != nil {
			if stderrors.Is(err, errExit) {
				return nil
			}
			r.printf("error: %s\n", errors.Message(err))
		}
	}
}

func (r *REPL) exec(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return errors.InvalidArgument("parse command: %v", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	name := strings.ToLower(tokens[0])
	if name == "quit" {
		name = "exit"
	}

	cmd, ok := r.commands[name]
	if !ok {
		return errors.InvalidArgument("unknown command %q, type help for the list", tokens[0])
	}

	zap.L().Debug("cli: command", zap.String("command", name), zap.Int("args", len(tokens)-1))
	return cmd.run(ctx, tokens[1:])
}

func (r *REPL) list(ctx context.Context, _ []string) error {
	qs, err := r.catalog.ListQuestions(ctx, catalog.ListQuestionsRequest{ApplicantID: r.applicantID})
	if err != nil {
		return err
	}

	if len(qs) == 0 {
		r.printf("No questions available.\n")
		return nil
	}

	for _, q := range qs {
		r.printf("%4s  #%d %s\n", q.ID, q.Number, q.Name)
	}
	return nil
}

func (r *REPL) open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return r.usage("open")
	}

	if err := r.session.Open(ctx, domain.ID(args[0])); err != nil {
		return err
	}

	r.printQuestion(r.session.View())
	return nil
}

func (r *REPL) reload(ctx context.Context, _ []string) error {
	if err := r.session.Reload(ctx); err != nil {
		return err
	}

	r.printQuestion(r.session.View())
	return nil
}

func (r *REPL) show(context.Context, []string) error {
	v := r.session.View()
	switch v.Status {
	case compiler.StatusIdle:
		r.printf("No question open. Use open <id>.\n")
		return nil
	case compiler.StatusLoading:
		r.printf("Loading question %s...\n", v.QuestionID)
		return nil
	case compiler.StatusFailed:
		r.printf("Question %s failed to load: %s\n", v.QuestionID, errors.Message(v.Err))
		return nil
	}

	r.printQuestion(v)
	r.printf("\nLanguage: %s\n%s\n", v.Language, v.Code)
	if v.Result != nil {
		r.printf("\n")
		r.printResult(v.Question, *v.Result)
	}
	if v.Report != nil {
		r.printf("\n")
		r.printReport(*v.Report)
	}
	return nil
}

func (r *REPL) lang(_ context.Context, args []string) error {
	if len(args) != 1 {
		return r.usage("lang")
	}

	if err := r.session.SetLanguage(domain.Language(strings.ToLower(args[0]))); err != nil {
		return err
	}

	v := r.session.View()
	r.printf("Language set to %s, starter code loaded.\n", v.Language)
	return nil
}

func (r *REPL) load(_ context.Context, args []string) error {
	if len(args) != 1 {
		return r.usage("load")
	}

	b, err := os.ReadFile(args[0])
	if err != nil {
		return errors.InvalidArgument("read %s: %v", args[0], err)
	}

	r.session.SetCode(string(b))
	r.printf("Loaded %d bytes from %s.\n", len(b), args[0])
	return nil
}

func (r *REPL) code(context.Context, []string) error {
	r.printf("Enter code, finish with a line containing only %s\n", codeTerminator)

	var lines []string
	for {
		line, err := r.in.Readline()
		if stderrors.Is(err, readline.ErrInterrupt) {
			r.printf("Code unchanged.\n")
			return nil
		}
		if err != nil && !stderrors.Is(err, io.EOF) {
			return err
		}
		if line == codeTerminator || err != nil {
			break
		}
		lines = append(lines, line)
	}

	r.session.SetCode(strings.Join(lines, "\n"))
	r.printf("Code updated (%d lines).\n", len(lines))
	return nil
}

func (r *REPL) run(ctx context.Context, _ []string) error {
	res, applied, err := r.session.Run(ctx)
	if err != nil {
		return err
	}

	if !applied {
		r.printf("Run superseded, outputs discarded.\n")
		return nil
	}

	r.printResult(r.session.View().Question, res)
	return nil
}

func (r *REPL) submit(ctx context.Context, _ []string) error {
	report, err := r.session.Submit(ctx)
	if report != nil {
		r.printReport(*report)
	}
	return err
}

func (r *REPL) help(context.Context, []string) error {
	for _, name := range r.commandNames() {
		c := r.commands[name]
		r.printf("  %-20s %s\n", c.usage, c.help)
	}
	return nil
}

func (r *REPL) usage(name string) error {
	return errors.InvalidArgument("usage: %s", r.commands[name].usage)
}

func (r *REPL) commandNames() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *REPL) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}
