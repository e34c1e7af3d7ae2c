package fsm

// NetworkRequest is the FSM input. It is persisted by the fsm store and must
// never carry the root account seed.
type NetworkRequest struct {
	RunID string
}

// NetworkResponse is the FSM output, accumulated across transitions.
type NetworkResponse struct {
	Completed    []string
	FailedState  string
	ErrorMessage string
}

// State names, in bring-up order.
const (
	StateTeardownPrior        = "teardown_prior"
	StateBuildCore            = "build_core"
	StateBuildAPI             = "build_api"
	StateStartCoreDB          = "start_core_db"
	StateSettleCoreDB         = "settle_core_db"
	StateInitCoreDB           = "init_core_db"
	StateStartCore            = "start_core"
	StateExtractRootSeed      = "extract_root_seed"
	StateInitCoreHistory      = "init_core_history"
	StateStartAPIDB           = "start_api_db"
	StateSettleAPIDB          = "settle_api_db"
	StateInitAPIDB            = "init_api_db"
	StateStartAPI             = "start_api"
	StateApplyBaseReserve     = "apply_base_reserve"
	StateApplyProtocolVersion = "apply_protocol_version"
	StateReady                = "ready"
	StateFailed               = "failed"
)

// States lists every transition state in the order the machine runs them.
var States = []string{
	StateTeardownPrior, StateBuildCore, StateBuildAPI,
	StateStartCoreDB, StateSettleCoreDB, StateInitCoreDB,
	StateStartCore, StateExtractRootSeed, StateInitCoreHistory,
	StateStartAPIDB, StateSettleAPIDB, StateInitAPIDB,
	StateStartAPI, StateApplyBaseReserve, StateApplyProtocolVersion,
	StateReady,
}
