// Package cmd wires the ptdump command line: cobra flag parsing,
// viper-backed configuration, and the loader/image/imgmetrics packages
// that do the actual work. It is the non-decoding descendant of
// ptxed.c's command line: it places sections into an image and hex-
// dumps whatever the read path returns, without disassembling
// anything.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gotrace/ptimage/cfg"
	"github.com/gotrace/ptimage/internal/asid"
	"github.com/gotrace/ptimage/internal/config"
	"github.com/gotrace/ptimage/internal/image"
	"github.com/gotrace/ptimage/internal/imgmetrics"
	"github.com/gotrace/ptimage/internal/loader"
	"github.com/gotrace/ptimage/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error
	mountConfig   cfg.Config

	rawArgs []string
	elfArgs []string
	cr3Arg  string
	readArg string
)

var rootCmd = &cobra.Command{
	Use:   "ptdump",
	Short: "Reconstruct a traced image from raw and ELF files and dump a byte range",
	Long: `ptdump builds an in-memory image the same way a trace decoder
populates its section cache, then serves one read against it and hex-
dumps the result. It never disassembles anything.`,
	RunE: runRoot,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	rootCmd.Flags().StringArrayVar(&rawArgs, "raw", nil, "file:vaddr — map the whole file at vaddr. Repeatable.")
	rootCmd.Flags().StringArrayVar(&elfArgs, "elf", nil, "file[:base] — map every PT_LOAD segment, offset by base. Repeatable.")
	rootCmd.Flags().StringVar(&cr3Arg, "asid-cr3", "", "CR3 value identifying the address space to read from, hex or decimal.")
	rootCmd.Flags().StringVar(&readArg, "read", "", "addr:len — the byte range to read and hex-dump.")

	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	if cfgFile == "" {
		unmarshalErr = viper.Unmarshal(&mountConfig, viper.DecodeHook(cfg.DecodeHook()))
		return
	}

	resolved, err := cfg.ResolveFilePath(cfgFile)
	if err != nil {
		configFileErr = fmt.Errorf("resolving config file path: %w", err)
		return
	}
	viper.SetConfigFile(string(resolved))
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		configFileErr = fmt.Errorf("reading config file: %w", err)
		return
	}
	unmarshalErr = viper.Unmarshal(&mountConfig, viper.DecodeHook(cfg.DecodeHook()))
}

// Execute runs the root command, exiting the process with status 1 on
// failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	if bindErr != nil {
		return bindErr
	}
	if configFileErr != nil {
		return configFileErr
	}
	if unmarshalErr != nil {
		return unmarshalErr
	}

	if mountConfig.Logging.FilePath != "" {
		legacyLogConfig := config.LogConfig{LogRotateConfig: config.DefaultLogRotateConfig()}
		if err := logger.InitLogFile(legacyLogConfig, mountConfig.Logging); err != nil {
			return fmt.Errorf("initializing log file: %w", err)
		}
	} else {
		logger.SetLoggingLevel(string(mountConfig.Logging.Severity))
		logger.SetLogFormat(mountConfig.Logging.Format)
	}

	var recorder *imgmetrics.Recorder
	if mountConfig.PrintStats {
		shutdown, err := imgmetrics.InstallStdoutProvider()
		if err != nil {
			return fmt.Errorf("installing metrics provider: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				fmt.Fprintln(os.Stderr, "flushing metrics:", err)
			}
		}()

		recorder, err = imgmetrics.NewRecorder()
		if err != nil {
			return fmt.Errorf("initializing metrics: %w", err)
		}
	}

	raws, err := parseRawArgs(rawArgs)
	if err != nil {
		return err
	}
	elfs, err := parseELFArgs(elfArgs)
	if err != nil {
		return err
	}
	if len(raws) == 0 && len(elfs) == 0 {
		return fmt.Errorf("you must specify at least one binary or ELF file (--raw|--elf)")
	}

	a, err := parseASID(cr3Arg)
	if err != nil {
		return err
	}

	cacheSize := mountConfig.CacheSize
	if cacheSize == 0 {
		cacheSize = image.DefaultCacheSize
	}

	img := image.Alloc("")
	defer img.Fini()
	img.SetCacheSize(cacheSize)
	if recorder != nil {
		img.SetMetricsRecorder(recorder)
	}

	if err := loader.LoadAll(context.Background(), img, a, raws, elfs); err != nil {
		return fmt.Errorf("loading images: %w", err)
	}

	addr, length, err := parseRead(readArg)
	if err != nil {
		return err
	}

	buf := make([]byte, length)
	n, err := img.Read(buf, a, addr)
	if err != nil {
		return fmt.Errorf("reading 0x%x: %w", addr, err)
	}

	fmt.Print(hexDump(addr, buf[:n]))
	return nil
}

func parseRawArgs(args []string) ([]loader.RawSpec, error) {
	specs := make([]loader.RawSpec, 0, len(args))
	for _, arg := range args {
		path, vaddrStr, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("--raw %q: expected file:vaddr", arg)
		}
		vaddr, err := parseUint(vaddrStr)
		if err != nil {
			return nil, fmt.Errorf("--raw %q: %w", arg, err)
		}
		specs = append(specs, loader.RawSpec{Path: path, VAddr: vaddr})
	}
	return specs, nil
}

func parseELFArgs(args []string) ([]loader.ELFSpec, error) {
	specs := make([]loader.ELFSpec, 0, len(args))
	for _, arg := range args {
		path, baseStr, hasBase := strings.Cut(arg, ":")
		spec := loader.ELFSpec{Path: path}
		if hasBase {
			base, err := parseUint(baseStr)
			if err != nil {
				return nil, fmt.Errorf("--elf %q: %w", arg, err)
			}
			spec.Base = &base
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseASID(cr3 string) (asid.ASID, error) {
	if cr3 == "" {
		return asid.Wildcard, nil
	}
	v, err := parseUint(cr3)
	if err != nil {
		return asid.ASID{}, fmt.Errorf("--asid-cr3 %q: %w", cr3, err)
	}
	return asid.FromUser(&asid.User{CR3: &v})
}

func parseRead(spec string) (addr, length uint64, err error) {
	if spec == "" {
		return 0, 0, fmt.Errorf("--read is required: addr:len")
	}
	addrStr, lenStr, ok := strings.Cut(spec, ":")
	if !ok {
		return 0, 0, fmt.Errorf("--read %q: expected addr:len", spec)
	}
	addr, err = parseUint(addrStr)
	if err != nil {
		return 0, 0, fmt.Errorf("--read %q: %w", spec, err)
	}
	length, err = parseUint(lenStr)
	if err != nil {
		return 0, 0, fmt.Errorf("--read %q: %w", spec, err)
	}
	return addr, length, nil
}

// parseUint accepts both "0x"-prefixed hex and plain decimal, matching
// ptxed's own extract_base (strtoull with base 0).
func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func hexDump(base uint64, data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Fprintf(&b, "%08x  ", base+uint64(off))
		for i := off; i < end; i++ {
			fmt.Fprintf(&b, "%02x ", data[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}
