package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/bayes/bootstrap"
	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/driver"
)

// cli 各子命令共享的状态，在 PersistentPreRunE 中初始化.
type cli struct {
	configPath string
	overrides  map[string]string
	verbose    bool

	cfg    config.Config
	params *config.Parameters
	rt     *bootstrap.Runtime
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "bayes",
		Short:         "Naive Bayes and Complement Naive Bayes text classifier",
		Version:       version,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// 参数校验通过后再关闭用法提示，参数错误时仍然打印用法.
			cmd.SilenceUsage = true
			return c.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.rt != nil {
				c.rt.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "path to a TOML config file")
	flags.StringToStringVarP(&c.overrides, "set", "D", nil, "override a classifier parameter, e.g. -D classifierType=cbayes")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newTrainCmd(c),
		newClassifyCmd(c),
		newEvaluateCmd(c),
		newPredictCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	if err := config.Load(c.configPath, &c.cfg); err != nil {
		return err
	}
	c.params = c.cfg.Bayes.Parameters()
	for k, v := range c.overrides {
		c.params.Set(k, v)
	}
	if c.verbose {
		c.params.Set(config.KeyVerbose, "true")
	}

	// 命令行覆盖的值同步回结构化配置，供基础设施初始化使用.
	verbose, err := c.params.Bool(config.KeyVerbose)
	if err != nil {
		return err
	}
	c.cfg.Bayes.Verbose = verbose
	c.cfg.Bayes.DataSource = c.params.StringOr(config.KeyDataSource, "file")
	c.cfg.Bayes.ClassifierType = c.params.StringOr(config.KeyClassifierType, "bayes")

	rt, err := bootstrap.New(cmd.Context(), serviceName, version, &c.cfg)
	if err != nil {
		return err
	}
	c.rt = rt
	rt.Logger.DebugContext(cmd.Context(), "configuration loaded", "bayes", c.cfg.Bayes.String())
	return nil
}

func (c *cli) driverOptions(extra ...driver.Option) []driver.Option {
	opts := []driver.Option{
		driver.WithLogger(c.rt.Logger.WithModule("driver")),
		driver.WithMetrics(c.rt.Metrics),
	}
	return append(opts, extra...)
}

// intFlagOrParam 返回命令行标志的值，未设置时回落到参数表.
func (c *cli) intFlagOrParam(cmd *cobra.Command, flag, key string) (int, error) {
	if cmd.Flags().Changed(flag) {
		v, err := cmd.Flags().GetInt(flag)
		if err != nil {
			return 0, err
		}
		c.params.Set(key, strconv.Itoa(v))
	}
	return c.params.Int(key)
}
