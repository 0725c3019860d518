package modelstore

import (
	"encoding/json"
	"io"

	"github.com/wyfcoding/bayes/bayes"
)

// formatVersion 模型文件格式版本，结构不兼容变更时递增.
const formatVersion = 1

type envelope struct {
	Format int            `json:"format"`
	Model  bayes.Snapshot `json:"model"`
}

// Encode 将模型写为 JSON.
func Encode(w io.Writer, m *bayes.Model) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(envelope{Format: formatVersion, Model: m.Snapshot()}); err != nil {
		return ErrCorruptModel.WithDetail("encode").WithCause(err)
	}
	return nil
}

// Decode 读取 Encode 写出的模型并校验.
func Decode(r io.Reader) (*bayes.Model, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, ErrCorruptModel.WithDetail("decode").WithCause(err)
	}
	if env.Format != formatVersion {
		return nil, ErrCorruptModel.WithDetail("unsupported model format %d", env.Format)
	}
	return bayes.FromSnapshot(env.Model)
}
