package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Southclaws/fault/fmsg"
	"github.com/charmbracelet/lipgloss"

	"github.com/cbegin/pigeon-go"
	"github.com/cbegin/pigeon-go/internal/config"
	"github.com/cbegin/pigeon-go/internal/debug"
	"github.com/cbegin/pigeon-go/internal/pattern"
)

var (
	patternFile = flag.String("file", "", "pattern JSON file to render")
	bankName    = flag.String("bank", "A", "pattern bank to render from when -file is not given")
	slot        = flag.Int("slot", 1, "slot (1-8) within -bank")
	outPath     = flag.String("out", "pigeon.wav", "output WAV path")
	configPath  = flag.String("config", "", "config file (default ~/.config/pigeon/config.yaml)")
	sampleRate  = flag.Int("sample-rate", 0, "sample rate override")
	bpm         = flag.String("bpm", "", "tempo override, e.g. 96")
	normalize   = flag.Float64("normalize", 0, "scale the render so its peak reaches this level (0 = off)")
	debugLog    = flag.Bool("debug", false, "write a debug log")
	noEffects   = flag.Bool("dry", false, "render without the master effects chain")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7DF9FF"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Width(11)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB000"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if *debugLog {
		path, err := cfg.ResolveDebugLog()
		if err != nil {
			log.Fatal(err)
		}
		if err := debug.Enable(path); err != nil {
			log.Fatal(err)
		}
		defer debug.Disable()
	}
	if *sampleRate > 0 {
		cfg.SampleRate = *sampleRate
	}

	doc, source, err := resolvePattern(cfg)
	if err != nil {
		log.Fatal(userMessage(err))
	}
	comp := doc.Composition(cfg.Tracks)
	if *bpm != "" {
		comp.Settings.BPM = pattern.ParseBPM(*bpm)
	}
	if comp.Empty() {
		fmt.Println(warnStyle.Render("pattern has no playable strokes; rendering silence"))
	}

	opts := pigeon.RenderOptions{
		SampleRate: cfg.SampleRate,
		Width:      cfg.Canvas.Width,
		Height:     cfg.Canvas.Height,
		MasterGain: cfg.MasterGain,
		Effects:    cfg.Effects,
	}
	if *noEffects || opts.Effects == nil {
		opts.Effects = []string{}
	}
	samples, rep, err := pigeon.RenderSamples(comp, opts)
	if err != nil {
		log.Fatal(userMessage(err))
	}
	if *normalize > 0 {
		pigeon.Normalize(samples, float32(*normalize))
	}
	pigeon.ClampSamples(samples)
	if err := pigeon.WriteWAV(*outPath, samples, cfg.SampleRate); err != nil {
		log.Fatal(err)
	}

	fmt.Println(summary(source, comp, samples, cfg.SampleRate, rep.Scheduled, rep.Skipped))
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadFile(*configPath)
	}
	return config.Load()
}

func resolvePattern(cfg *config.Config) (pattern.Document, string, error) {
	if *patternFile != "" {
		data, err := os.ReadFile(*patternFile)
		if err != nil {
			return pattern.Document{}, "", err
		}
		doc, err := pattern.Decode(data)
		return doc, *patternFile, err
	}
	path, err := cfg.ResolveBankPath()
	if err != nil {
		return pattern.Document{}, "", err
	}
	bank, notice, err := pattern.OpenBank(path)
	if err != nil {
		return pattern.Document{}, "", err
	}
	if notice != nil {
		fmt.Println(warnStyle.Render(notice.String()))
	}
	name := strings.ToUpper(*bankName)
	doc, err := bank.Load(name, *slot-1)
	return doc, fmt.Sprintf("bank %s%d", name, *slot), err
}

func userMessage(err error) string {
	if issue := fmsg.GetIssue(err); issue != "" {
		return issue
	}
	return err.Error()
}

func summary(source string, comp *pattern.Composition, samples []float32, sr, scheduled, skipped int) string {
	frames := len(samples) / 2
	rows := [][2]string{
		{"source", source},
		{"output", *outPath},
		{"tempo", fmt.Sprintf("%g bpm", comp.Settings.BPM)},
		{"duration", fmt.Sprintf("%.2fs", float64(frames)/float64(sr))},
		{"peak", fmt.Sprintf("%.3f", pigeon.Peak(samples))},
		{"scheduled", fmt.Sprint(scheduled)},
		{"skipped", fmt.Sprint(skipped)},
	}
	lines := []string{titleStyle.Render("pigeon render")}
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(r[0]), valueStyle.Render(r[1])))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
