// Package main is the h68kld CLI front end: cobra/viper flag and config
// handling that builds a config.Config and hands it to internal/driver.
// Grounded on Manu343726/cucaracha's cmd/root.go (a root cobra.Command
// with flags bound to local vars and cobra.OnInitialize wiring a
// viper-backed config load) — spec.md §1 keeps all of this out of the
// core; it exists only to produce the typed record the Driver consumes.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gmofishsauce/h68kld/internal/config"
	"github.com/gmofishsauce/h68kld/internal/diag"
	"github.com/gmofishsauce/h68kld/internal/driver"
	"github.com/gmofishsauce/h68kld/internal/mapfile"
)

var (
	cfgFile string

	outputPath    string
	emitR         bool
	relocLenient  bool // --rn
	makeMCS       bool
	mapOutput     string
	mapRequested  bool
	baseAddrStr   string
	g2lkRequest   bool // -g
	zeroFill      bool // -0
	stripSymbols  bool // -x
	omitBSSZero   bool // -an
	emitWarnings  bool // -w
	libPathsFlag  []string
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "h68kld [flags] object...",
	Short: "A Human68k-style static linker",
	Long: `h68kld links Human68k-style relocatable object files into an
executable (.x), a further-relinkable relocatable object (.r), or an
.mcs-wrapped relocatable, with an optional .map report.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLink,
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	flags := rootCmd.Flags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default $HOME/.h68kldrc.yaml)")
	flags.StringVarP(&outputPath, "output", "o", "a.x", "output file path")
	flags.BoolVarP(&emitR, "relocatable", "r", false, "emit relocatable (.r)")
	flags.BoolVar(&relocLenient, "rn", false, "like -r but allow non-zero exec and relocations")
	flags.BoolVar(&makeMCS, "makemcs", false, "emit .mcs")
	flags.StringVarP(&mapOutput, "map", "p", "", "emit .map; derive name from output path if absent")
	flags.Lookup("map").NoOptDefVal = "-"
	flags.StringVarP(&baseAddrStr, "base", "b", "0", "base address (decimal or 0x-prefixed hex)")
	flags.BoolVarP(&g2lkRequest, "ctor-request", "g", false, "honor value-bearing ctor/dtor opcodes in addition to flags")
	flags.BoolVarP(&zeroFill, "zero-fill", "0", false, "force bss zero-fill inclusion in relocatable output")
	flags.BoolVarP(&stripSymbols, "strip", "x", false, "strip the symbol table")
	flags.BoolVar(&omitBSSZero, "an", false, "omit bss zero-fill in .r")
	flags.BoolVarP(&emitWarnings, "warn", "w", false, "emit warnings")
	flags.StringArrayVarP(&libPathsFlag, "libpath", "L", nil, "add library search path")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose structured logging")

	cobra.OnInitialize(initViper)
}

// initViper loads .h68kldrc.yaml the way cucaracha's cmd/root.go loads
// .cucaracha: an explicit -c path first, else $HOME, YAML format, read
// only for values this CLI doesn't require a flag for (default library
// search paths, map-sort default).
func initViper() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".h68kldrc")
	}
	viper.SetEnvPrefix("H68KLD")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
}

func runLink(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(args)
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "h68kld: %v\n", err)
		return errUsage
	}

	log := newLogger(verbose, emitWarnings)

	res, err := driver.Run(cfg, log)
	if err != nil {
		printDiag(err)
		return errFatal
	}

	if emitWarnings {
		for _, w := range res.Warnings {
			color.New(color.FgYellow).Fprintln(os.Stderr, w.String())
		}
	}

	fmt.Fprintf(os.Stdout, "h68kld: wrote %s\n", res.OutputPath)
	if res.MapPath != "" {
		fmt.Fprintf(os.Stdout, "h68kld: wrote %s\n", res.MapPath)
	}
	return nil
}

// errUsage/errFatal are sentinel wrapper errors Execute (main.go) maps
// to the CLI exit codes spec.md §6 specifies: 2 for usage errors, 1 for
// any fatal diagnostic.
var (
	errUsage = &exitError{code: 2}
	errFatal = &exitError{code: 1}
)

type exitError struct{ code int }

func (e *exitError) Error() string { return "" }

func printDiag(err error) {
	if de, ok := err.(*diag.Error); ok {
		color.New(color.FgRed).Fprintf(os.Stderr, "h68kld: %s: %s\n", de.Kind, de.Error())
		return
	}
	color.New(color.FgRed).Fprintf(os.Stderr, "h68kld: %v\n", err)
}

func buildConfig(inputs []string) (*config.Config, error) {
	base, err := parseBaseAddress(baseAddrStr)
	if err != nil {
		return nil, err
	}

	format := config.FormatX
	switch {
	case makeMCS:
		format = config.FormatMCS
	case emitR || relocLenient:
		format = config.FormatR
	}

	relocCheck := config.Strict
	if relocLenient {
		relocCheck = config.Lenient
	}

	bssPolicy := config.BSSInclude
	if omitBSSZero {
		bssPolicy = config.BSSOmit
	}
	if zeroFill {
		bssPolicy = config.BSSInclude
	}

	symPolicy := config.SymbolsKeep
	if stripSymbols {
		symPolicy = config.SymbolsStrip
	}

	g2lk := config.G2lkFlag
	if g2lkRequest {
		g2lk = config.G2lkRequest
	}

	mapOut := resolveMapOutput()
	dirs, archives := splitLibraryPaths(libraryPaths())

	return &config.Config{
		Inputs:            inputs,
		Archives:          archives,
		LibraryPaths:      dirs,
		OutputPath:        outputPath,
		Format:            format,
		BaseAddress:       base,
		RelocationCheck:   relocCheck,
		BSSPolicy:         bssPolicy,
		SymbolTablePolicy: symPolicy,
		G2lkMode:          g2lk,
		MapOutput:         mapOut,
		MapSort:           mapSortFromViper(),
		Warnings:          emitWarnings,
		Verbose:           verbose,
	}, nil
}

func resolveMapOutput() string {
	if mapOutput == "" {
		return ""
	}
	if mapOutput != "-" {
		return mapOutput
	}
	return mapfile.DerivedName(outputPath)
}

func mapSortFromViper() config.MapSort {
	if viper.GetString("map-sort") == "address" {
		return config.ByAddress
	}
	return config.BySectionName
}

// splitLibraryPaths partitions configured library paths into plain
// search directories and concrete archive files (the CLI surface
// spec.md §6 names has no dedicated archive-file flag, so a library
// path that names an existing regular file is treated as a library to
// feed straight into ArchiveSelector).
func splitLibraryPaths(paths []string) (dirs, archives []string) {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			archives = append(archives, p)
			continue
		}
		dirs = append(dirs, p)
	}
	return dirs, archives
}

func parseBaseAddress(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	base := 10
	trimmed := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		trimmed = s[2:]
	}
	v, err := strconv.ParseUint(trimmed, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid base address %q: %w", s, err)
	}
	return uint32(v), nil
}
