package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/molinfo-vienna/CDPKit-sub014/internal/application/confgen"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/domain/molecule"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/infrastructure/molfile"
	"github.com/molinfo-vienna/CDPKit-sub014/internal/intelligence/torsion"
	"github.com/molinfo-vienna/CDPKit-sub014/pkg/errors"
)

// NewRulesCmd creates the rules command group for torsion rule libraries.
func NewRulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate torsion rule libraries",
	}

	checkCmd := &cobra.Command{
		Use:   "check FILE...",
		Short: "Parse and compile torsion rule libraries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesCheck(cmd, args)
		},
	}

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Print the built-in torsion rule library as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := torsion.DefaultLibrary().Marshal()
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode library")
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	var input string
	var libraries []string
	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Show the torsion angles assigned to every rotatable bond",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesMatch(cmd, input, libraries)
		},
	}
	matchCmd.Flags().StringVarP(&input, "input", "i", "-", "input SD file")
	matchCmd.Flags().StringSliceVar(&libraries, "torsion-library", nil, "additional torsion rule library (repeatable)")

	rulesCmd.AddCommand(checkCmd, dumpCmd, matchCmd)
	return rulesCmd
}

func runRulesCheck(cmd *cobra.Command, files []string) error {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header([]string{"File", "Library", "Categories", "Rules", "Result"})
	var firstErr error
	failed := 0
	for _, f := range files {
		lib, err := torsion.LoadLibrary(f)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			table.Append([]string{f, "-", "-", "-", color.RedString(string(errors.GetCode(err)))})
			continue
		}
		table.Append([]string{
			f,
			lib.Name,
			strconv.Itoa(lib.NumCategories()),
			strconv.Itoa(lib.NumRules()),
			color.GreenString("OK"),
		})
	}
	table.Render()
	if firstErr != nil {
		return errors.Wrap(firstErr, errors.GetCode(firstErr), "torsion library check failed").
			WithDetailf("%d of %d files", failed, len(files))
	}
	PrintSuccess(cmd, fmt.Sprintf("%d libraries valid", len(files)))
	return nil
}

func runRulesMatch(cmd *cobra.Command, input string, extra []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	settings, err := cfg.ConfGen.ToSettings()
	if err != nil {
		return err
	}
	files := append(append([]string(nil), cfg.Torsion.LibraryFiles...), extra...)
	libs, err := confgen.LoadTorsionLibraries(files, cfg.Torsion.ReplaceDefault)
	if err != nil {
		return err
	}
	src := confgen.NewAngleSource(settings, cliCtx.Logger, libs...)

	in, closeIn, err := openInput(cmd, input)
	if err != nil {
		return err
	}
	defer closeIn()
	mols, err := molfile.ReadAll(in)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header([]string{"Molecule", "Bond", "Rule", "Angles"})
	rotorOpts := molecule.RotorOptions{HeteroAtomHydrogens: settings.SampleHeteroAtomHydrogens}
	for i, mol := range mols {
		name := mol.Name
		if name == "" {
			name = "mol" + strconv.Itoa(i+1)
		}
		rotors := mol.RotatableBonds(rotorOpts)
		for b, ok := rotors.NextSet(0); ok; b, ok = rotors.NextSet(b + 1) {
			bond := int(b)
			table.Append([]string{name, describeBond(mol, bond), ruleName(src, mol, bond), formatAngles(src, mol, bond)})
		}
	}
	table.Render()
	return nil
}

func describeBond(mol *molecule.Molecule, bond int) string {
	b := mol.Bonds[bond]
	return fmt.Sprintf("%s%d-%s%d", mol.Atoms[b.Begin].Symbol, b.Begin+1, mol.Atoms[b.End].Symbol, b.End+1)
}

func ruleName(src *torsion.AngleSource, mol *molecule.Molecule, bond int) string {
	matches := src.Matches(mol, bond)
	if len(matches) == 0 {
		return color.YellowString("grid")
	}
	return matches[0].Rule.Name
}

func formatAngles(src *torsion.AngleSource, mol *molecule.Molecule, bond int) string {
	angles, _ := src.Angles(mol, bond)
	return strings.Join(lo.Map(angles, func(a torsion.Angle, _ int) string {
		return strconv.FormatFloat(a.Degrees, 'f', -1, 64)
	}), ",")
}

//Personal.AI order the ending
