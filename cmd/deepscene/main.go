package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/naseridev/deepscene/internal/config"
	"github.com/naseridev/deepscene/internal/pipeline"
	"github.com/naseridev/deepscene/internal/scrypto"
	"github.com/naseridev/deepscene/internal/stegerr"
)

const usage = `DeepScene hides files inside lossless images.

Usage:
  deepscene encode <image> <file> [-o output] [-p password | -P] [-c config] [-q]
  deepscene decode <image> [-o output] [-p password | -P] [-c config] [-q]
  deepscene inspect <image> [-c config]
  deepscene config <path> [-c config]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "encode":
		err = runEncode(os.Args[2:])
	case "decode":
		err = runDecode(os.Args[2:])
	case "inspect":
		err = runInspect(os.Args[2:])
	case "config":
		err = runConfig(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags are shared by every subcommand
type commonFlags struct {
	configPath string
	quiet      bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "c", "", "Path to YAML config (default $"+config.EnvConfigPath+")")
	fs.BoolVar(&c.quiet, "q", false, "Only log warnings and errors")
}

// setup loads the configuration and installs the pipeline logger
func (c *commonFlags) setup() (*config.Config, error) {
	conf, err := config.Load(config.ResolvePath(c.configPath))
	if err != nil {
		return nil, err
	}

	level, err := zapcore.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, stegerr.Validation("invalid log level %q", conf.LogLevel)
	}
	if c.quiet && level < zapcore.WarnLevel {
		level = zapcore.WarnLevel
	}

	logger, err := newLogger(level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	pipeline.SetLogger(logger)
	return conf, nil
}

func newLogger(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = ""
	cfg.EncoderConfig.CallerKey = ""
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// passwordFlags handle -p and -P
type passwordFlags struct {
	value  string
	set    bool
	prompt bool
}

func (p *passwordFlags) register(fs *flag.FlagSet) {
	fs.Func("p", "Password for encryption/decryption", func(s string) error {
		p.value = s
		p.set = true
		return nil
	})
	fs.BoolVar(&p.prompt, "P", false, "Prompt for the password without echoing it")
}

// resolve returns nil when no password was requested
func (p *passwordFlags) resolve(confirm bool) ([]byte, error) {
	if p.set && p.prompt {
		return nil, stegerr.Validation("use either -p or -P, not both")
	}
	if p.set {
		return []byte(p.value), nil
	}
	if !p.prompt {
		return nil, nil
	}

	pass, err := scrypto.GetSecurePassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	if confirm {
		again, err := scrypto.GetSecurePassword("Confirm password: ")
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(pass, again) {
			return nil, stegerr.Validation("passwords do not match")
		}
	}
	return pass, nil
}

// parseArgs parses flags that may appear before, between or after positionals
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func runEncode(args []string) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	var (
		common   commonFlags
		password passwordFlags
		output   = fs.String("o", "", "Output image (default <image dir>/<stem>_steg.png)")
	)
	common.register(fs)
	password.register(fs)

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 2 {
		return stegerr.Validation("encode needs <image> and <file>")
	}

	conf, err := common.setup()
	if err != nil {
		return err
	}
	defer pipeline.Logger().Sync()

	pass, err := password.resolve(true)
	if err != nil {
		return err
	}

	result, err := pipeline.New(conf).Encode(pipeline.EncodeOptions{
		ImagePath:  positional[0],
		FilePath:   positional[1],
		OutputPath: *output,
		Password:   pass,
	})
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, renderEncode(result))
	return nil
}

func runDecode(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	var (
		common   commonFlags
		password passwordFlags
		output   = fs.String("o", "", "Output file (default: embedded file name)")
	)
	common.register(fs)
	password.register(fs)

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return stegerr.Validation("decode needs exactly one <image>")
	}

	conf, err := common.setup()
	if err != nil {
		return err
	}
	defer pipeline.Logger().Sync()

	pass, err := password.resolve(false)
	if err != nil {
		return err
	}

	result, err := pipeline.New(conf).Decode(pipeline.DecodeOptions{
		ImagePath:  positional[0],
		OutputPath: *output,
		Password:   pass,
	})
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, renderDecode(result))
	return nil
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return stegerr.Validation("inspect needs exactly one <image>")
	}

	conf, err := common.setup()
	if err != nil {
		return err
	}
	defer pipeline.Logger().Sync()

	info, err := pipeline.New(conf).Inspect(positional[0])
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, renderInspection(info))
	return nil
}

// runConfig writes the effective configuration to a YAML file, as a starting
// point for -c or $DEEPSCENE_CONFIG.
func runConfig(args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return stegerr.Validation("config needs exactly one <path>")
	}

	conf, err := config.Load(config.ResolvePath(common.configPath))
	if err != nil {
		return err
	}
	if err := config.Save(positional[0], conf); err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, successStyle.Render(fmt.Sprintf("Configuration written to '%s'", positional[0]))+"\n")
	return nil
}
