package driver

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/wyfcoding/bayes/bayes"
	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/corpus"
	"github.com/wyfcoding/bayes/storage"
	"github.com/wyfcoding/bayes/tracing"
)

func newTrainer(params *config.Parameters, o *options) (*bayes.Trainer, error) {
	mode, err := bayes.ParseMode(params.StringOr(config.KeyClassifierType, "bayes"))
	if err != nil {
		return nil, err
	}
	alpha, err := params.Float(config.KeyAlpha)
	if err != nil {
		return nil, err
	}
	return bayes.NewTrainer(mode, alpha,
		bayes.WithTrainerLogger(o.logger),
		bayes.WithTrainerMetrics(o.metrics),
	)
}

func feed(ctx context.Context, t *bayes.Trainer, r io.Reader, params *config.Parameters) error {
	gramSize, err := params.Int(config.KeyGramSize)
	if err != nil {
		return err
	}
	cr, err := corpus.NewReader(r, params.StringOr(config.KeyEncoding, "UTF-8"), gramSize)
	if err != nil {
		return err
	}
	if err := t.Train(ctx, cr.Labeled()); err != nil {
		return err
	}
	return cr.Err()
}

// TrainFromCorpus 从一个语料流训练模型，模式与平滑参数取自 params.
func TrainFromCorpus(ctx context.Context, r io.Reader, params *config.Parameters, opts ...Option) (*bayes.Model, error) {
	o := newOptions(opts)
	t, err := newTrainer(params, o)
	if err != nil {
		return nil, err
	}
	if err := feed(ctx, t, r, params); err != nil {
		return nil, err
	}
	return t.Finish()
}

// TrainFromStorage 依次读取 prefix 下的全部语料对象训练模型，并交给 writer 持久化.
func TrainFromStorage(ctx context.Context, objects storage.Storage, prefix string, params *config.Parameters,
	writer bayes.ModelWriter, opts ...Option,
) (m *bayes.Model, err error) {
	o := newOptions(opts)
	ctx, span := tracing.StartSpan(ctx, "driver.Train", tracing.PrefixKey.String(prefix))
	defer tracing.End(span, &err)
	start := time.Now()

	names, err := objects.List(ctx, dirPrefix(prefix))
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, config.ErrInvalidValue.WithDetail("no corpus files under %q", prefix)
	}

	t, err := newTrainer(params, o)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		rc, err := objects.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		err = feed(ctx, t, rc, params)
		rc.Close()
		if err != nil {
			return nil, err
		}
		o.logger.DebugContext(ctx, "corpus file consumed", "object", name)
	}

	if m, err = t.Finish(); err != nil {
		return nil, err
	}
	if writer != nil {
		if err := writer.WriteModel(ctx, m); err != nil {
			return nil, err
		}
	}
	o.logger.InfoContext(ctx, "training finished",
		"files", len(names),
		"documents", m.TotalDocuments(),
		"labels", len(m.LabelList()),
		"duration", time.Since(start),
	)
	return m, nil
}

// dirPrefix 保证列举只命中目录内的对象，不会把 test-output 当作 test 的内容.
func dirPrefix(dir string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return ""
	}
	return dir + "/"
}
