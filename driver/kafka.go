package driver

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/wyfcoding/bayes/config"
	"github.com/wyfcoding/bayes/evaluation"
	"github.com/wyfcoding/bayes/logging"
	"github.com/wyfcoding/bayes/tracing"
	"github.com/wyfcoding/bayes/xerrors"
)

// PartialResult 一个分片的部分结果。同一分片重跑会再次发送，接收方以最后一次为准.
type PartialResult struct {
	Shard   int                         `json:"shard"`
	Attempt int                         `json:"attempt"`
	Matrix  *evaluation.ConfusionMatrix `json:"matrix"`
}

// Sink 接收分片完成时的部分结果.
type Sink interface {
	Publish(ctx context.Context, r PartialResult) error
}

// MessageWriter 是 KafkaSink 使用的 kafka-go 写端能力，*kafkago.Writer 满足该接口.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// MessageReader 是 CollectFromKafka 使用的 kafka-go 读端能力，*kafkago.Reader 满足该接口.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
}

// KafkaSink 把部分结果以分片编号为键写入 Kafka，并在消息头中携带追踪上下文.
type KafkaSink struct {
	writer MessageWriter
	logger *logging.Logger
}

// NewKafkaWriter 按配置创建写端。相同分片的消息落在同一分区.
func NewKafkaWriter(cfg config.KafkaConfig) *kafkago.Writer {
	acks := kafkago.RequiredAcks(cfg.RequiredAcks)
	if cfg.RequiredAcks == 0 {
		acks = kafkago.RequireAll
	}
	return &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		MaxAttempts:  5,
		RequiredAcks: acks,
	}
}

// NewKafkaReader 按配置创建消费者组读端.
func NewKafkaReader(cfg config.KafkaConfig) *kafkago.Reader {
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = time.Second
	}
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        maxWait,
		CommitInterval: 0,
	})
}

// NewKafkaSink 创建 Kafka 部分结果推送端.
func NewKafkaSink(w MessageWriter, logger *logging.Logger) *KafkaSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &KafkaSink{writer: w, logger: logger}
}

// Publish 实现 Sink.
func (s *KafkaSink) Publish(ctx context.Context, r PartialResult) error {
	ctx, span := tracing.StartSpan(ctx, "driver.KafkaSink.Publish", tracing.ShardKey.Int(r.Shard))
	defer span.End()

	value, err := json.Marshal(r)
	if err != nil {
		tracing.SetError(span, err)
		return xerrors.WrapInternal(err, "encode partial result")
	}
	carrier := tracing.InjectContext(ctx)
	headers := make([]kafkago.Header, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	msg := kafkago.Message{
		Key:     []byte(strconv.Itoa(r.Shard)),
		Value:   value,
		Headers: headers,
		Time:    time.Now(),
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		tracing.SetError(span, err)
		s.logger.ErrorContext(ctx, "failed to publish partial result", "shard", r.Shard, "error", err)
		return err
	}
	return nil
}

// Close 关闭写端.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// CollectFromKafka 消费部分结果直到收齐 shards 个不同分片，再按分片编号顺序合并.
// 同一分片的重复消息以后到者为准.
func CollectFromKafka(ctx context.Context, r MessageReader, shards int, logger *logging.Logger) (*evaluation.ConfusionMatrix, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if shards < 1 {
		return nil, evaluation.ErrNoMatrices
	}

	latest := make(map[int]*evaluation.ConfusionMatrix, shards)
	for len(latest) < shards {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			return nil, err
		}

		carrier := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			carrier[h.Key] = string(h.Value)
		}
		mctx, span := tracing.StartSpan(tracing.ExtractContext(ctx, carrier), "driver.CollectFromKafka",
			tracing.OffsetKey.Int64(msg.Offset),
		)

		var pr PartialResult
		if err := json.Unmarshal(msg.Value, &pr); err != nil || pr.Matrix == nil {
			logger.WarnContext(mctx, "skipping malformed partial result", "offset", msg.Offset, "error", err)
		} else {
			if _, dup := latest[pr.Shard]; dup {
				logger.DebugContext(mctx, "replacing partial result of retried shard", "shard", pr.Shard, "attempt", pr.Attempt)
			}
			latest[pr.Shard] = pr.Matrix
		}
		if err := r.CommitMessages(ctx, msg); err != nil {
			logger.ErrorContext(mctx, "failed to commit offset", "offset", msg.Offset, "error", err)
		}
		span.End()
	}

	ids := make([]int, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	parts := make([]*evaluation.ConfusionMatrix, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, latest[id])
	}
	return evaluation.Reduce(parts...)
}
