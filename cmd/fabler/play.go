package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/fabler/internal/config"
	"github.com/jwebster45206/fabler/internal/engine"
	"github.com/jwebster45206/fabler/internal/gateway"
	pkgstorage "github.com/jwebster45206/fabler/pkg/storage"
)

const defaultWrapWidth = 80

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	narratorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

type playOptions struct {
	hero     string
	universe string
	prompt   string
	style    string
	load     string
	width    int
}

func playCmd() *cobra.Command {
	var opts playOptions
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a story in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.hero, "hero", "", "hero name (required unless --load)")
	cmd.Flags().StringVar(&opts.universe, "universe", "Fantasy Classique", "preset universe name")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "free text universe prompt, overrides --universe")
	cmd.Flags().StringVar(&opts.style, "style", "Classique", "preset style name")
	cmd.Flags().StringVar(&opts.load, "load", "", "resume a saved session by name")
	cmd.Flags().IntVar(&opts.width, "width", defaultWrapWidth, "wrap width for story text")
	return cmd
}

func runPlay(cmd *cobra.Command, opts playOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if opts.load == "" && strings.TrimSpace(opts.hero) == "" {
		return errors.New("--hero is required when not loading a save")
	}

	// logs go to stderr so they do not interleave with the story
	cfg, log, err := loadConfig(os.Stderr)
	if err != nil {
		return err
	}
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	presets, err := config.LoadPresets(cfg.PresetsFile)
	if err != nil {
		return err
	}

	usage := gateway.NewUsageTracker()
	ec, err := engineConfig(ctx, cfg, usage, nil, log)
	if err != nil {
		return err
	}
	session := engine.NewSession(ec)
	defer session.Close()

	p := &player{
		session: session,
		store:   store,
		out:     cmd.OutOrStdout(),
		width:   opts.width,
	}
	defer func() {
		fmt.Fprintln(p.out, promptStyle.Render("Usage: "+usage.Summary()))
	}()

	if opts.load != "" {
		if err := p.load(ctx, opts.load); err != nil {
			return err
		}
		p.render()
	} else {
		basePrompt := strings.ReplaceAll(opts.prompt, "{hero_name}", opts.hero)
		if opts.prompt == "" {
			var ok bool
			basePrompt, ok = presets.Prompt(opts.universe, opts.hero)
			if !ok {
				return fmt.Errorf("unknown universe %q (available: %s)", opts.universe, strings.Join(presets.UniverseNames(), ", "))
			}
		}
		p.turn(session.StartGame(ctx, opts.hero, basePrompt, presets.Style(opts.style)))
	}

	return p.loop(ctx, cmd.InOrStdin())
}

// player drives a session from a line-oriented terminal.
type player struct {
	session *engine.Session
	store   pkgstorage.Storage
	out     io.Writer
	width   int
}

func (p *player) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(p.out, promptStyle.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(p.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		quit, err := p.handle(ctx, strings.TrimSpace(scanner.Text()))
		if err != nil {
			p.errorf("%v", err)
		}
		if quit {
			return nil
		}
	}
}

// handle runs one input line. It returns true when the player asked to quit.
func (p *player) handle(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}

	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/continue":
		p.turn(p.session.Continue(ctx))
		return false, nil
	case "/save":
		return false, p.save(ctx, strings.TrimSpace(arg))
	case "/help":
		p.help()
		return false, nil
	}
	if strings.HasPrefix(line, "/") {
		p.help()
		return false, fmt.Errorf("unknown command %s", cmd)
	}

	choice := line
	if n, err := strconv.Atoi(line); err == nil {
		choices := p.session.Choices()
		if n < 1 || n > len(choices) {
			return false, fmt.Errorf("pick a number between 1 and %d", len(choices))
		}
		choice = choices[n-1]
	}
	p.turn(p.session.SubmitChoice(ctx, choice))
	return false, nil
}

// turn reports the outcome of a generated turn.
func (p *player) turn(err error) {
	var turnErr *engine.TurnError
	switch {
	case err == nil:
		p.render()
	case errors.As(err, &turnErr) && turnErr.Kind == engine.KindContract:
		p.render()
		p.errorf("Le narrateur n'a pas proposé de choix. Tapez /continue pour reprendre.")
	case errors.As(err, &turnErr):
		p.errorf("La génération a échoué (%s). Tapez /continue pour réessayer.", turnErr.Reason)
	default:
		p.errorf("%v", err)
	}
}

func (p *player) save(ctx context.Context, name string) error {
	if err := pkgstorage.ValidateName(name); err != nil {
		return err
	}
	data, err := p.session.Save()
	if err != nil {
		return err
	}
	if err := p.store.SaveSession(ctx, name, data); err != nil {
		return err
	}
	fmt.Fprintln(p.out, promptStyle.Render("Partie sauvegardée: "+name))
	return nil
}

func (p *player) load(ctx context.Context, name string) error {
	data, err := p.store.LoadSession(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to read save %q: %w", name, err)
	}
	return p.session.Load(data)
}

func (p *player) render() {
	v := p.session.View()
	width := p.width
	if width <= 0 {
		width = defaultWrapWidth
	}

	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, titleStyle.Render(fmt.Sprintf("%s · Chapitre %d", v.HeroName, v.Chapter)))
	if v.Narrative != "" {
		fmt.Fprintln(p.out, narratorStyle.Render(wordwrap.String(v.Narrative, width)))
	}
	fmt.Fprintln(p.out)
	for i, c := range v.Choices {
		fmt.Fprintln(p.out, choiceStyle.Render(wordwrap.String(fmt.Sprintf("%d. %s", i+1, c), width)))
	}
	if len(v.Choices) == 0 {
		fmt.Fprintln(p.out, promptStyle.Render("(aucun choix, tapez /continue)"))
	}
}

func (p *player) help() {
	fmt.Fprintln(p.out, promptStyle.Render("1-4 choisir · texte libre · /continue · /save <nom> · /quit"))
}

func (p *player) errorf(format string, args ...any) {
	fmt.Fprintln(p.out, errorStyle.Render(fmt.Sprintf(format, args...)))
}
