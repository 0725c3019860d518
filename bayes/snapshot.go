package bayes

import "github.com/wyfcoding/bayes/logging"

// Snapshot 是 Model 的可序列化形式，由持久化层负责编码.
// 计数以词表下标为键，避免在每个类别中重复存储特征字符串.
type Snapshot struct {
	Mode       string          `json:"mode"`
	Alpha      float64         `json:"alpha"`
	Vocabulary []string        `json:"vocabulary"`
	Labels     []LabelSnapshot `json:"labels"`
}

// LabelSnapshot 单个类别的统计量.
type LabelSnapshot struct {
	Label     string        `json:"label"`
	Documents int64         `json:"documents"`
	Counts    map[int]int64 `json:"counts"`
}

// Snapshot 导出模型的完整统计量.
func (m *Model) Snapshot() Snapshot {
	s := Snapshot{
		Mode:       m.mode.String(),
		Alpha:      m.alpha,
		Vocabulary: append([]string(nil), m.features...),
		Labels:     make([]LabelSnapshot, len(m.labels)),
	}
	for c, label := range m.labels {
		counts := make(map[int]int64, len(m.counts[c]))
		for f, n := range m.counts[c] {
			counts[f] = n
		}
		s.Labels[c] = LabelSnapshot{Label: label, Documents: m.docCounts[c], Counts: counts}
	}
	return s
}

// FromSnapshot 校验快照并重建模型，派生量（总数、先验）重新计算.
func FromSnapshot(s Snapshot) (*Model, error) {
	mode, err := ParseMode(s.Mode)
	if err != nil {
		return nil, err
	}
	if !(s.Alpha > 0) {
		return nil, ErrInvalidAlpha.WithContext("alpha", s.Alpha)
	}

	t, err := NewTrainer(mode, s.Alpha, WithTrainerLogger(logging.Discard()))
	if err != nil {
		return nil, err
	}
	t.features = append([]string(nil), s.Vocabulary...)
	t.featureTotals = make([]int64, len(s.Vocabulary))
	for i, f := range s.Vocabulary {
		if _, dup := t.vocab[f]; dup {
			return nil, ErrInvalidSnapshot.WithDetail("duplicate feature %q", f)
		}
		t.vocab[f] = i
	}

	for _, ls := range s.Labels {
		if ls.Label == "" {
			return nil, ErrInvalidSnapshot.WithDetail("empty label")
		}
		if _, dup := t.labelIndex[ls.Label]; dup {
			return nil, ErrInvalidSnapshot.WithDetail("duplicate label %q", ls.Label)
		}
		if ls.Documents < 1 {
			return nil, ErrInvalidSnapshot.WithDetail("label %q has no documents", ls.Label)
		}
		c := len(t.labels)
		t.labelIndex[ls.Label] = c
		t.labels = append(t.labels, ls.Label)
		t.docCounts = append(t.docCounts, ls.Documents)
		t.totalDocs += ls.Documents

		counts := make(map[int]int64, len(ls.Counts))
		var total int64
		for f, n := range ls.Counts {
			if f < 0 || f >= len(t.features) {
				return nil, ErrInvalidSnapshot.WithDetail("label %q references feature index %d", ls.Label, f)
			}
			if n < 0 {
				return nil, ErrInvalidSnapshot.WithDetail("label %q has negative count", ls.Label)
			}
			if n == 0 {
				continue
			}
			counts[f] = n
			t.featureTotals[f] += n
			total += n
		}
		t.counts = append(t.counts, counts)
		t.classTotals = append(t.classTotals, total)
		t.corpusWords += total
	}

	return t.Finish()
}
