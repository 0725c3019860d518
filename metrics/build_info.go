package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegisterBuildInfo 注册构建信息指标，附带当前使用的分类算法.
func (m *Metrics) RegisterBuildInfo(version, classifierType string) {
	if m == nil || m.BuildInfo != nil {
		return
	}
	if version == "" {
		version = "unknown"
	}
	if classifierType == "" {
		classifierType = "unknown"
	}

	m.BuildInfo = m.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bayes_build_info",
		Help: "Build information for the classifier binary",
	}, []string{"version", "classifier_type"})

	m.BuildInfo.WithLabelValues(version, classifierType).Set(1)
}
