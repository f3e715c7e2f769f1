package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/repr"
	"github.com/coreos/pkg/capnslog"
	"github.com/pontaoski/mini/compiler"
	"github.com/pontaoski/mini/config"
	"github.com/pontaoski/mini/lexer"
	"github.com/pontaoski/mini/link"
	"github.com/urfave/cli/v2"
	"github.com/ztrue/tracerr"
)

var plog = capnslog.NewPackageLogger("github.com/pontaoski/mini", "main")

func setupLogging(c *cli.Context) {
	capnslog.SetFormatter(capnslog.NewPrettyFormatter(os.Stderr, false))
	if c.Bool("verbose") {
		capnslog.SetGlobalLogLevel(capnslog.DEBUG)
	} else {
		capnslog.SetGlobalLogLevel(capnslog.WARNING)
	}
}

func readSource(c *cli.Context) (string, string, error) {
	file := c.Args().First()
	if file == "" {
		return "", "", fmt.Errorf("no source file provided")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", "", err
	}
	return file, string(data), nil
}

// options merges the project file with command line flags.
func options(c *cli.Context, file string) (compiler.Options, error) {
	cfg, err := config.Load(config.FileName)
	if err != nil {
		return compiler.Options{}, err
	}

	opts := compiler.Options{
		Filename:    file,
		EmitSymbols: cfg.EmitSymbols || c.Bool("symbols"),
		Link: link.Options{
			Target:  cfg.Target,
			Linker:  cfg.Linker,
			Timeout: cfg.Timeout,
		},
	}
	if t := c.String("target"); t != "" {
		target, err := link.ParseTarget(t)
		if err != nil {
			return opts, err
		}
		opts.Link.Target = target
	}
	if l := c.String("linker"); l != "" {
		opts.Link.Linker = l
	}
	if c.IsSet("timeout") {
		opts.Link.Timeout = c.Duration("timeout")
	}
	return opts, nil
}

func outputName(c *cli.Context, file string) (string, error) {
	if out := c.String("output"); out != "" {
		return out, nil
	}
	cfg, err := config.Load(config.FileName)
	if err != nil {
		return "", err
	}
	if cfg.Package != "" {
		return cfg.Package, nil
	}
	return strings.TrimSuffix(file, ".mini"), nil
}

// report prints a compile failure. Failures are already on stderr, so the
// returned error only carries the exit code.
func report(c *cli.Context, err error) error {
	if c.Bool("trace") {
		tracerr.PrintSourceColor(err)
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	return cli.Exit("", 1)
}

var compileFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "target",
		Usage: "os/arch to build for, defaults to the host",
	},
	&cli.BoolFlag{
		Name:  "symbols",
		Usage: "embed the symbol table in the executable",
	},
}

func main() {
	app := &cli.App{
		Name:  "mini",
		Usage: "mini compiler",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log every pipeline stage",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "print stack traces with errors",
			},
		},
		Before: func(c *cli.Context) error {
			setupLogging(c)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "create " + config.FileName + " in the current directory",
				ArgsUsage: "NAME",
				Action: func(c *cli.Context) error {
					name := c.Args().First()
					if name == "" {
						return cli.Exit("no package name provided", 1)
					}
					cfg := config.Default()
					cfg.Package = name
					return config.Save(config.FileName, cfg)
				},
			},
			{
				Name:      "build",
				Usage:     "build an executable",
				ArgsUsage: "SOURCE",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
					},
					&cli.StringFlag{
						Name:  "linker",
						Usage: "linker binary to use instead of searching",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "limit for the link step, 0 for none",
					},
					&cli.BoolFlag{
						Name:  "dump",
						Usage: "print the IR instead of linking",
					},
				}, compileFlags...),
				Action: func(c *cli.Context) error {
					file := c.Args().First()
					if file == "" {
						return cli.Exit("no source file provided", 1)
					}
					opts, err := options(c, file)
					if err != nil {
						return err
					}

					if c.Bool("dump") {
						_, src, err := readSource(c)
						if err != nil {
							return err
						}
						mod, err := compiler.Compile(src, opts)
						if err != nil {
							return report(c, err)
						}
						fmt.Println(mod)
						return nil
					}

					out, err := outputName(c, file)
					if err != nil {
						return err
					}
					if err := compiler.Build(context.Background(), file, out, opts); err != nil {
						return report(c, err)
					}
					fmt.Printf("Built %s\n", out)
					return nil
				},
			},
			{
				Name:      "ir",
				Usage:     "print the IR module for a file",
				ArgsUsage: "SOURCE",
				Flags:     compileFlags,
				Action: func(c *cli.Context) error {
					file, src, err := readSource(c)
					if err != nil {
						return err
					}
					opts, err := options(c, file)
					if err != nil {
						return err
					}
					mod, err := compiler.Compile(src, opts)
					if err != nil {
						return report(c, err)
					}
					fmt.Println(mod)
					return nil
				},
			},
			{
				Name:      "tokens",
				Usage:     "dump the tokens of a file",
				ArgsUsage: "SOURCE",
				Action: func(c *cli.Context) error {
					file, src, err := readSource(c)
					if err != nil {
						return err
					}
					toks, err := lexer.Tokenize(src, file)
					if err != nil {
						return report(c, err)
					}
					repr.Println(toks)
					return nil
				},
			},
			{
				Name:      "ast",
				Usage:     "dump the syntax tree of a file",
				ArgsUsage: "SOURCE",
				Action: func(c *cli.Context) error {
					file, src, err := readSource(c)
					if err != nil {
						return err
					}
					prog, err := compiler.Parse(src, compiler.Options{Filename: file})
					if err != nil {
						return report(c, err)
					}
					repr.Println(prog)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		plog.Errorf("%v", err)
		os.Exit(1)
	}
}
