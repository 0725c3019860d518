package bayes

import "github.com/wyfcoding/bayes/xerrors"

var (
	// ErrInvalidDatastore 数据存储未初始化或缺少评分所需的统计量。
	ErrInvalidDatastore = xerrors.New(xerrors.ErrFailedPrecondition, 412201, "invalid datastore", "classifier context must be initialized with complete statistics", nil)
	// ErrAlreadyInitialized 分类上下文被重复初始化。
	ErrAlreadyInitialized = xerrors.New(xerrors.ErrFailedPrecondition, 412202, "classifier context already initialized", "initialize must be called exactly once", nil)
	// ErrTrainerFinished 训练器已冻结，不再接受文档。
	ErrTrainerFinished = xerrors.New(xerrors.ErrFailedPrecondition, 412203, "trainer finished", "training is one-pass, create a new trainer", nil)
	// ErrEmptyClass 类别没有任何特征，无法评分。
	ErrEmptyClass = xerrors.New(xerrors.ErrData, 422201, "class has no features", "label was trained without any features", nil)
	// ErrEmptyCorpus 训练语料为空。
	ErrEmptyCorpus = xerrors.New(xerrors.ErrData, 422202, "empty corpus", "at least one labeled document is required", nil)
	// ErrInvalidSnapshot 模型快照内容不一致。
	ErrInvalidSnapshot = xerrors.New(xerrors.ErrData, 422203, "invalid model snapshot", "", nil)
	// ErrUnknownLabel 查询了模型中不存在的类别。
	ErrUnknownLabel = xerrors.New(xerrors.ErrNotFound, 404201, "unknown label", "", nil)
	// ErrInvalidAlpha 平滑系数必须为正数。
	ErrInvalidAlpha = xerrors.New(xerrors.ErrInvalidArg, 400201, "invalid alpha", "alpha must be greater than zero", nil)
	// ErrInvalidInput 输入参数错误。
	ErrInvalidInput = xerrors.New(xerrors.ErrInvalidArg, 400202, "invalid input", "check your input parameters", nil)
	// ErrUnknownAlgorithm 不支持的分类器类型。
	ErrUnknownAlgorithm = xerrors.New(xerrors.ErrInvalidArg, 400203, "unknown classifier type", "supported types: bayes, cbayes", nil)
)
