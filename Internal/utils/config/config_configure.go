package config

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ConfigureInteractive walks the operator through the tunable scoring and
// sizing values. It reports whether the edited config should be saved.
func ConfigureInteractive(cfg *Config, in io.Reader, out io.Writer) (bool, error) {
	reader := bufio.NewReader(in)

	for {
		fmt.Fprintln(out, "\n⚙️  Configuration Menu:")
		fmt.Fprintln(out, "1. View Current Configuration")
		fmt.Fprintln(out, "2. Configure Scoring")
		fmt.Fprintln(out, "3. Configure Position Sizing")
		fmt.Fprintln(out, "4. Save & Exit")
		fmt.Fprintln(out, "5. Exit Without Saving")
		fmt.Fprint(out, "Select option: ")

		choice, err := reader.ReadString('\n')
		if err != nil && choice == "" {
			if err == io.EOF {
				return false, nil
			}
			return false, err
		}

		switch strings.TrimSpace(choice) {
		case "1":
			DisplayConfiguration(out, cfg)
		case "2":
			configureScoring(cfg, reader, out)
		case "3":
			configureSizing(cfg, reader, out)
		case "4":
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "❌ Invalid configuration: %v\n", err)
				continue
			}
			return true, nil
		case "5":
			return false, nil
		default:
			fmt.Fprintln(out, "❌ Invalid option")
		}
	}
}

// DisplayConfiguration shows current configuration
func DisplayConfiguration(w io.Writer, cfg *Config) {
	fmt.Fprintln(w, "\n📋 Current Configuration:")

	fmt.Fprintln(w, "\n=== Scoring ===")
	fmt.Fprintf(w, "Signal Threshold: %d\n", cfg.Scoring.SignalThreshold)
	fmt.Fprintf(w, "VIX Gate: %.2f\n", cfg.Scoring.VIXGate)
	fmt.Fprintf(w, "Smart Money Threshold: %.2f\n", cfg.Scoring.SmartMoneyThreshold)
	fmt.Fprintf(w, "RSX Variant: %s\n", cfg.Scoring.RSXVariant)
	fmt.Fprintf(w, "Stop Basis: %s\n", cfg.Scoring.StopBasis)
	fmt.Fprintf(w, "Reward/Risk: %.1f\n", cfg.Scoring.RewardRisk)

	fmt.Fprintln(w, "\n=== Sizing ===")
	fmt.Fprintf(w, "Capital: %.2f\n", cfg.Global.Capital)
	fmt.Fprintf(w, "Risk Fraction: %.4f\n", cfg.Global.RiskFraction)

	fmt.Fprintln(w, "\n=== Markets ===")
	for _, name := range sortedKeys(cfg.Markets) {
		m := cfg.Markets[name]
		sessions := make([]string, 0, len(m.Sessions))
		for _, s := range m.Sessions {
			sessions = append(sessions, s.Start+"-"+s.End)
		}
		fmt.Fprintf(w, "%s: sessions %s, golden %s-%s\n",
			name, strings.Join(sessions, ", "), m.GoldenWindow.Start, m.GoldenWindow.End)
	}

	fmt.Fprintln(w, "\n=== Watchlists ===")
	for _, name := range cfg.WatchlistNames() {
		wl := cfg.Watchlists[name]
		fmt.Fprintf(w, "%s (%s): %d tickers vs %s\n", name, wl.Market, len(wl.Tickers), wl.Benchmark)
	}
}

func configureScoring(cfg *Config, reader *bufio.Reader, out io.Writer) {
	s := &cfg.Scoring
	fmt.Fprintln(out, "\n📊 Configure Scoring (press Enter to keep a value):")

	fmt.Fprintf(out, "Current signal threshold: %d\n", s.SignalThreshold)
	fmt.Fprint(out, "New signal threshold (0-100): ")
	if val, ok := readInt(reader); ok && val >= 0 && val <= 100 {
		s.SignalThreshold = val
	}

	fmt.Fprintf(out, "Current VIX gate: %.2f\n", s.VIXGate)
	fmt.Fprint(out, "New VIX gate: ")
	if val, ok := readFloat(reader); ok && val > 0 {
		s.VIXGate = val
	}

	fmt.Fprintf(out, "Current smart money threshold: %.2f\n", s.SmartMoneyThreshold)
	fmt.Fprint(out, "New smart money threshold (0-1): ")
	if val, ok := readFloat(reader); ok && val >= 0 && val <= 1 {
		s.SmartMoneyThreshold = val
	}

	fmt.Fprintf(out, "Current RSX variant: %s\n", s.RSXVariant)
	fmt.Fprint(out, "New RSX variant (strict/simple): ")
	if v := readLine(reader); v == "strict" || v == "simple" {
		s.RSXVariant = v
	}

	fmt.Fprintln(out, "✅ Scoring updated")
}

func configureSizing(cfg *Config, reader *bufio.Reader, out io.Writer) {
	fmt.Fprintln(out, "\n💰 Configure Position Sizing (press Enter to keep a value):")

	fmt.Fprintf(out, "Current capital: %.2f\n", cfg.Global.Capital)
	fmt.Fprint(out, "New capital: ")
	if val, ok := readFloat(reader); ok && val > 0 {
		cfg.Global.Capital = val
	}

	fmt.Fprintf(out, "Current risk fraction: %.4f\n", cfg.Global.RiskFraction)
	fmt.Fprint(out, "New risk fraction (0-1): ")
	if val, ok := readFloat(reader); ok && val > 0 && val < 1 {
		cfg.Global.RiskFraction = val
	}

	fmt.Fprintln(out, "✅ Sizing updated")
}

func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func readFloat(reader *bufio.Reader) (float64, bool) {
	val, err := strconv.ParseFloat(readLine(reader), 64)
	return val, err == nil
}

func readInt(reader *bufio.Reader) (int, bool) {
	val, err := strconv.Atoi(readLine(reader))
	return val, err == nil
}

func sortedKeys(m map[string]MarketConfig) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
