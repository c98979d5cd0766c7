package main

// Copyright (c) 2026 Colin McRae

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/predrag3141/PSLQ/bignumber"

	"github.com/thedrow/fpylll/bkzops"
	"github.com/thedrow/fpylll/gsoops"
	"github.com/thedrow/fpylll/intmatrix"
)

var (
	blockSize        int
	preprocBlockSize int
	maxLoops         int
	maxTime          time.Duration
	ghFactor         float64
	autoAbort        bool
	pruning          []float64
	precision        int64
	outputPath       string
	chartPath        string
	verbose          bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bkz [basis file]",
	Short: "BKZ lattice basis reduction",
	Long: `Reads an integer lattice basis, one whitespace-separated row per line,
runs BKZ reduction with the configured block size, and writes the reduced
basis in the same format. Optionally renders the log2 Gram-Schmidt norm
profile before and after reduction to an HTML chart.`,
	Args: cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config = zap.NewDevelopmentConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runReduction,
}

func init() {
	rootCmd.Flags().IntVarP(&blockSize, "block-size", "b", 20, "block size of the reduction")
	rootCmd.Flags().IntVar(&preprocBlockSize, "preprocessing-block-size", 0,
		"block size of nested preprocessing tours; 0 disables preprocessing")
	rootCmd.Flags().IntVar(&maxLoops, "max-loops", 0, "bound on the number of tours; 0 means unbounded")
	rootCmd.Flags().DurationVar(&maxTime, "max-time", 0, "wall-clock budget for tours; 0 means unbounded")
	rootCmd.Flags().Float64Var(&ghFactor, "gh-factor", bkzops.DefaultGHFactor,
		"Gaussian heuristic bound factor; 0 disables heuristic bounding")
	rootCmd.Flags().BoolVar(&autoAbort, "auto-abort", true, "stop tours once the head norm stalls")
	rootCmd.Flags().Float64SliceVar(&pruning, "pruning", nil,
		"per-depth pruning coefficients in (0, 1], one per block row")
	rootCmd.Flags().Int64Var(&precision, "precision", 1000, "binary precision of the Gram-Schmidt data")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "file for the reduced basis; default stdout")
	rootCmd.Flags().StringVar(&chartPath, "chart", "", "HTML file for the Gram-Schmidt profile chart")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "per-tour progress logging")
}

func runReduction(cmd *cobra.Command, args []string) error {
	if err := bignumber.Init(precision); err != nil {
		return fmt.Errorf("invalid precision %d: %w", precision, err)
	}
	input, numRows, numCols, err := readBasis(args[0])
	if err != nil {
		return fmt.Errorf("could not read the basis from %q: %w", args[0], err)
	}
	logger.Info("basis read",
		zap.String("path", args[0]), zap.Int("rows", numRows), zap.Int("cols", numCols),
	)

	basis, err := intmatrix.NewFromInt64Array(input, numRows, numCols)
	if err != nil {
		return fmt.Errorf("could not build the basis matrix: %w", err)
	}
	var profileBefore []float64
	if chartPath != "" {
		original, err := intmatrix.NewFromInt64Array(input, numRows, numCols)
		if err != nil {
			return fmt.Errorf("could not copy the input basis: %w", err)
		}
		profileBefore, err = gsoProfile(original)
		if err != nil {
			return fmt.Errorf("could not compute the input profile: %w", err)
		}
	}

	reduction, err := bkzops.NewReduction(basis, bkzops.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("could not set up the reduction: %w", err)
	}
	params := &bkzops.Params{
		BlockSize: blockSize,
		Pruning:   pruning,
		GHFactor:  ghFactor,
		AutoAbort: autoAbort,
		MaxLoops:  maxLoops,
		MaxTime:   maxTime,
		Verbose:   verbose,
	}
	if preprocBlockSize > 0 {
		params.Preprocessing = &bkzops.Params{BlockSize: preprocBlockSize, MaxLoops: 2}
	}
	startTime := time.Now()
	if err = reduction.Run(params); err != nil {
		return fmt.Errorf("reduction failed: %w", err)
	}
	logger.Info("reduction finished",
		zap.Duration("elapsed", time.Since(startTime)),
		zap.Int("tours", reduction.Stats.TourCount()),
	)
	if verbose {
		fmt.Fprint(os.Stderr, reduction.Stats.String())
	}

	if err = writeBasis(basis, outputPath); err != nil {
		return fmt.Errorf("could not write the reduced basis: %w", err)
	}
	if chartPath != "" {
		profileAfter, err := gsoProfile(basis)
		if err != nil {
			return fmt.Errorf("could not compute the reduced profile: %w", err)
		}
		if err = renderProfileChart(chartPath, profileBefore, profileAfter); err != nil {
			return fmt.Errorf("could not render the profile chart: %w", err)
		}
		logger.Info("profile chart written", zap.String("path", chartPath))
	}
	return nil
}

// readBasis parses one whitespace-separated row of integers per line.
// Blank lines and lines starting with '#' are skipped. All rows must have
// the same number of entries.
func readBasis(path string) ([]int64, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer func() { _ = f.Close() }()

	var entries []int64
	numRows, numCols := 0, 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if numRows == 0 {
			numCols = len(fields)
		} else if len(fields) != numCols {
			return nil, 0, 0, fmt.Errorf(
				"row %d has %d entries, want %d", numRows, len(fields), numCols,
			)
		}
		for _, field := range fields {
			entry, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, 0, 0, fmt.Errorf("row %d: %w", numRows, err)
			}
			entries = append(entries, entry)
		}
		numRows++
	}
	if err = scanner.Err(); err != nil {
		return nil, 0, 0, err
	}
	if numRows == 0 {
		return nil, 0, 0, fmt.Errorf("no rows in %q", path)
	}
	return entries, numRows, numCols, nil
}

func writeBasis(basis *intmatrix.IntMatrix, path string) error {
	entries, err := basis.ToInt64Array()
	if err != nil {
		return err
	}
	out := os.Stdout
	if path != "" {
		out, err = os.Create(path)
		if err != nil {
			return err
		}
		defer func() { _ = out.Close() }()
	}
	w := bufio.NewWriter(out)
	numRows, numCols := basis.Dimensions()
	for i := 0; i < numRows; i++ {
		for j := 0; j < numCols; j++ {
			if j > 0 {
				if _, err = w.WriteString(" "); err != nil {
					return err
				}
			}
			if _, err = w.WriteString(strconv.FormatInt(entries[i*numCols+j], 10)); err != nil {
				return err
			}
		}
		if _, err = w.WriteString("\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// gsoProfile returns log2 of the squared Gram-Schmidt norms of the basis.
func gsoProfile(basis *intmatrix.IntMatrix) ([]float64, error) {
	m, err := gsoops.NewMat(basis)
	if err != nil {
		return nil, err
	}
	retVal := make([]float64, basis.NumRows())
	for i := 0; i < basis.NumRows(); i++ {
		mant, expo, err := m.GetRExp(i)
		if err != nil {
			return nil, err
		}
		retVal[i] = math.Log2(mant) + float64(expo)
	}
	return retVal, nil
}

func toLineItems(profile []float64) []opts.LineData {
	out := make([]opts.LineData, len(profile))
	for i, v := range profile {
		out[i] = opts.LineData{Value: v}
	}
	return out
}

func renderProfileChart(path string, before []float64, after []float64) error {
	xLabels := make([]string, len(before))
	for i := range xLabels {
		xLabels[i] = strconv.Itoa(i)
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Gram-Schmidt profile",
			Subtitle: "log2 of the squared Gram-Schmidt norms by row index",
		}),
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Gram-Schmidt profile", Width: "1200px", Height: "600px",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xLabels).
		AddSeries("input", toLineItems(before)).
		AddSeries("reduced", toLineItems(after))

	page := components.NewPage()
	page.AddCharts(line)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return page.Render(f)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
