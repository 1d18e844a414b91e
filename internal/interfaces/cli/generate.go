package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/application/confgen"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/conformer"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/molfile"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/monitoring/logging"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
	dto "github.com/molinfo-vienna/CDPKit-sub014/pkg/types/conformer"
)

type generateOptions struct {
	input         string
	output        string
	mode          string
	energyWindow  float64
	minRMSD       float64
	maxConformers int
	timeout       time.Duration
	seed          int64
	libraries     []string
	quiet         bool
}

// summaryRow is one line of the per-molecule report.
type summaryRow struct {
	name       string
	status     conformer.ReturnCode
	mode       conformer.SamplingMode
	conformers int
	emin       float64
	elapsed    time.Duration
	fallback   bool
}

// NewGenerateCmd creates the generate command.
func NewGenerateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate conformer ensembles for every molecule of an SD file",
		Long: "Reads V2000 SD records, generates a conformer ensemble per molecule and\n" +
			"writes one SD record per conformer with ENERGY and CONFORMER data fields.\n" +
			"Use '-' for stdin or stdout.",
		Example: "  confgen generate -i ligands.sdf -o ensembles.sdf --max-conformers 50",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "-", "input SD file")
	f.StringVarP(&opts.output, "output", "o", "-", "output SD file")
	f.StringVar(&opts.mode, "mode", "", "sampling mode: auto|systematic|stochastic")
	f.Float64Var(&opts.energyWindow, "energy-window", 0, "energy window above the minimum in kcal/mol")
	f.Float64Var(&opts.minRMSD, "min-rmsd", 0, "RMSD in Å below which conformers are duplicates")
	f.IntVar(&opts.maxConformers, "max-conformers", 0, "maximum output conformers per molecule (0 = unlimited)")
	f.DurationVar(&opts.timeout, "timeout", 0, "time budget per molecule, e.g. 2m")
	f.Int64Var(&opts.seed, "seed", 0, "random seed (0 seeds from the clock)")
	f.StringSliceVar(&opts.libraries, "torsion-library", nil, "additional torsion rule library (repeatable)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress the summary table")
	return cmd
}

// override collects only the flags given on the command line.
func (o *generateOptions) override(cmd *cobra.Command) *dto.SettingsOverride {
	f := cmd.Flags()
	ov := &dto.SettingsOverride{}
	if f.Changed("mode") {
		ov.SamplingMode = o.mode
	}
	if f.Changed("energy-window") {
		ov.EnergyWindow = &o.energyWindow
	}
	if f.Changed("min-rmsd") {
		ov.MinRMSD = &o.minRMSD
	}
	if f.Changed("max-conformers") {
		ov.MaxNumOutputConformers = &o.maxConformers
	}
	if f.Changed("timeout") {
		secs := int(o.timeout.Round(time.Second) / time.Second)
		ov.TimeoutSeconds = &secs
	}
	if f.Changed("seed") {
		ov.RandomSeed = &o.seed
	}
	return ov
}

func runGenerate(cmd *cobra.Command, opts *generateOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg, logger := cliCtx.Config, cliCtx.Logger.Named("generate")

	base, err := cfg.ConfGen.ToSettings()
	if err != nil {
		return err
	}
	settings, err := confgen.ApplyOverride(base, opts.override(cmd))
	if err != nil {
		return err
	}
	files := append(append([]string(nil), cfg.Torsion.LibraryFiles...), opts.libraries...)
	libs, err := confgen.LoadTorsionLibraries(files, cfg.Torsion.ReplaceDefault)
	if err != nil {
		return err
	}
	gen, err := confgen.NewGenerator(settings,
		confgen.WithLogger(logger),
		confgen.WithAngleSource(confgen.NewAngleSource(settings, logger, libs...)))
	if err != nil {
		return err
	}

	in, closeIn, err := openInput(cmd, opts.input)
	if err != nil {
		return err
	}
	defer closeIn()
	out, closeOut, err := openOutput(cmd, opts.output)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rows, genErr := generateAll(ctx, gen, molfile.NewReader(in), molfile.NewWriter(out, molfile.WithProgram("confgen")), logger)
	if err := closeOut(); err != nil && genErr == nil {
		genErr = err
	}
	if !opts.quiet && len(rows) > 0 {
		writeSummary(cmd.ErrOrStderr(), rows)
	}
	if genErr != nil {
		return genErr
	}

	failed := 0
	for _, r := range rows {
		if r.status != conformer.Success {
			failed++
		}
	}
	if failed > 0 {
		return errors.New(errors.ErrCodeConfGenEmbeddingFailed, "conformer generation failed").
			WithDetailf("%d of %d molecules", failed, len(rows))
	}
	return nil
}

// generateAll streams molecules from r to w. An interrupt stops after the
// molecule in progress.
func generateAll(ctx context.Context, gen *confgen.Generator, r *molfile.Reader, w *molfile.Writer, logger logging.Logger) ([]summaryRow, error) {
	var rows []summaryRow
	for index := 1; ; index++ {
		if ctx.Err() != nil {
			logger.Warn("interrupted; remaining molecules skipped", logging.Int("processed", len(rows)))
			break
		}
		mol, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, err
		}
		if mol.Name == "" {
			mol.Name = "mol" + strconv.Itoa(index)
		}
		res, err := gen.Generate(ctx, mol)
		if err != nil {
			return rows, err
		}
		if err := w.WriteConformers(mol, res.Conformers); err != nil {
			return rows, err
		}
		row := summaryRow{
			name:       mol.Name,
			status:     res.Status,
			mode:       res.Mode,
			conformers: len(res.Conformers),
			elapsed:    res.Elapsed,
			fallback:   res.InputFallback,
		}
		if len(res.Conformers) > 0 {
			row.emin = res.Conformers[0].Energy
		}
		rows = append(rows, row)
	}
	return rows, w.Flush()
}

func writeSummary(out io.Writer, rows []summaryRow) {
	table := tablewriter.NewWriter(out)
	table.Header([]string{"#", "Molecule", "Status", "Mode", "Conformers", "E(min)", "Time"})
	for i, r := range rows {
		emin := "-"
		if r.conformers > 0 {
			emin = strconv.FormatFloat(r.emin, 'f', 3, 64)
		}
		mode := r.mode.String()
		if r.fallback {
			mode += " (input)"
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			truncateString(r.name, 30),
			colorizeStatus(r.status),
			mode,
			strconv.Itoa(r.conformers),
			emin,
			r.elapsed.Round(time.Millisecond).String(),
		})
	}
	table.Render()
}

func colorizeStatus(rc conformer.ReturnCode) string {
	switch {
	case rc == conformer.Success:
		return color.GreenString(rc.String())
	case rc.Interrupted():
		return color.YellowString(rc.String())
	default:
		return color.RedString(rc.String())
	}
}

func truncateString(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" || path == "" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeNotFound, "cannot open input").WithDetail(path)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "-" || path == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "cannot create output").WithDetail(path)
	}
	return f, func() error {
		if err := f.Close(); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "cannot close output").WithDetail(path)
		}
		return nil
	}, nil
}

//Personal.AI order the ending
