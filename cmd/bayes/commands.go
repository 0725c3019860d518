package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/corpus"
	"github.com/wyfcoding/bayes/driver"
	"github.com/wyfcoding/bayes/evaluation"
	"github.com/wyfcoding/bayes/ngram"
)

func newTrainCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "train <corpus-dir>",
		Short: "Train a model from labeled corpus files and write it to the data source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			objects, err := c.rt.Objects()
			if err != nil {
				return err
			}
			store, err := c.rt.Store(ctx, c.params)
			if err != nil {
				return err
			}
			m, err := driver.TrainFromStorage(ctx, objects, c.rt.Path(args[0]), c.params, store, c.driverOptions()...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "trained %s model: %d documents, %d labels, %d corpus words\n",
				m.Mode(), m.TotalDocuments(), len(m.LabelList()), m.CorpusWordCount())
			return nil
		},
	}
}

func newClassifyCmd(c *cli) *cobra.Command {
	var toKafka bool
	cmd := &cobra.Command{
		Use:   "classify [test-dir]",
		Short: "Classify a labeled test set in parallel shards and print the evaluation report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				c.params.Set(config.KeyTestDirPath, args[0])
			}
			testDir, err := c.params.String(config.KeyTestDirPath)
			if err != nil {
				return err
			}
			c.params.Set(config.KeyTestDirPath, c.rt.Path(testDir))
			if _, err := c.intFlagOrParam(cmd, "workers", config.KeyWorkers); err != nil {
				return err
			}

			objects, err := c.rt.Objects()
			if err != nil {
				return err
			}
			store, err := c.rt.Store(ctx, c.params)
			if err != nil {
				return err
			}
			ds, err := store.Datastore(ctx)
			if err != nil {
				return err
			}

			var extra []driver.Option
			if toKafka {
				if !c.cfg.Kafka.Enabled {
					return config.ErrInvalidValue.WithDetail("--kafka requires kafka.enabled in the config")
				}
				sink := driver.NewKafkaSink(driver.NewKafkaWriter(c.cfg.Kafka), c.rt.Logger.WithModule("kafka"))
				defer sink.Close()
				extra = append(extra, driver.WithSink(sink))
			}

			m, err := driver.ClassifyParallel(ctx, objects, c.params, ds, c.driverOptions(extra...)...)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), evaluation.AnalyzerFromMatrix(m))
			return nil
		},
	}
	cmd.Flags().Int("workers", 0, "number of shards classified concurrently (default from config)")
	cmd.Flags().BoolVar(&toKafka, "kafka", false, "also stream partial results to the configured Kafka topic")
	return cmd
}

func newEvaluateCmd(c *cli) *cobra.Command {
	var fromKafka int
	cmd := &cobra.Command{
		Use:   "evaluate [output-dir]",
		Short: "Merge partial results of a previous classify run and print the evaluation report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				m   *evaluation.ConfusionMatrix
				err error
			)
			if fromKafka > 0 {
				if !c.cfg.Kafka.Enabled {
					return config.ErrInvalidValue.WithDetail("--from-kafka requires kafka.enabled in the config")
				}
				reader := driver.NewKafkaReader(c.cfg.Kafka)
				defer reader.Close()
				m, err = driver.CollectFromKafka(ctx, reader, fromKafka, c.rt.Logger.WithModule("kafka"))
			} else {
				dir := ""
				if len(args) == 1 {
					dir = args[0]
				} else {
					testDir, perr := c.params.String(config.KeyTestDirPath)
					if perr != nil {
						return perr
					}
					dir = driver.OutputDir(testDir)
				}
				objects, oerr := c.rt.Objects()
				if oerr != nil {
					return oerr
				}
				m, err = driver.ReadResult(ctx, objects, c.rt.Path(dir))
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), evaluation.AnalyzerFromMatrix(m))
			return nil
		},
	}
	cmd.Flags().IntVar(&fromKafka, "from-kafka", 0, "collect this many shard results from Kafka instead of reading part files")
	return cmd
}

func newPredictCmd(c *cli) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "predict [text]",
		Short: "Classify unlabeled documents given as an argument or one per line on stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := c.rt.Store(ctx, c.params)
			if err != nil {
				return err
			}
			ds, err := store.Datastore(ctx)
			if err != nil {
				return err
			}
			gramSize, err := c.params.Int(config.KeyGramSize)
			if err != nil {
				return err
			}
			cc, err := driver.NewClassifierContext(ctx, c.params, ds, c.driverOptions()...)
			if err != nil {
				return err
			}
			defaultCat := c.params.StringOr(config.KeyDefaultCat, "unknown")

			predict := func(text string) error {
				features := ngram.New(text, gramSize).GenerateWithoutLabel()
				results, err := cc.ClassifyDocumentTopK(ctx, features, defaultCat, top)
				if err != nil {
					return err
				}
				parts := make([]string, len(results))
				for i, r := range results {
					parts[i] = r.String()
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, "\t"))
				return nil
			}

			if len(args) == 1 {
				return predict(args[0])
			}
			in, err := corpus.Decoder(cmd.InOrStdin(), c.params.StringOr(config.KeyEncoding, "UTF-8"))
			if err != nil {
				return err
			}
			sc := bufio.NewScanner(in)
			for sc.Scan() {
				if strings.TrimSpace(sc.Text()) == "" {
					continue
				}
				if err := predict(sc.Text()); err != nil {
					return err
				}
			}
			return sc.Err()
		},
	}
	cmd.Flags().IntVarP(&top, "top", "k", 1, "number of best labels to print per document")
	return cmd
}
