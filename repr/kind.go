package repr

// Kind is the broad category of a record, derived from the part of its schema tag before the first
// colon.  The set of kinds is closed; records carrying a tag we do not know map to KindUnknown so
// that future backend kinds pass through ingestion harmlessly.

type Kind int32

const (
	KindUnknown Kind = iota
	KindProcess
	KindMachine
	KindSession
	KindConnection
	KindListeningSocket
	KindContainer
	KindRedFlag
	KindCluster
	KindNode
	KindSnapshot
)

// MT: Constant after initialization; immutable
var kindNames = map[string]Kind{
	"model_process":          KindProcess,
	"model_machine":          KindMachine,
	"model_session":          KindSession,
	"model_connection":       KindConnection,
	"model_listening_socket": KindListeningSocket,
	"model_container":        KindContainer,
	"event_redflag":          KindRedFlag,
	"model_k8s_cluster":      KindCluster,
	"model_k8s_node":         KindNode,
	"event_top_data":         KindSnapshot,
}

// KindOfSchema maps a schema tag like "model_process:1.2.0" to its Kind.

func KindOfSchema(schema string) Kind {
	for i := 0; i < len(schema); i++ {
		if schema[i] == ':' {
			schema = schema[:i]
			break
		}
	}
	return kindNames[schema]
}

func (k Kind) String() string {
	switch k {
	case KindProcess:
		return "model_process"
	case KindMachine:
		return "model_machine"
	case KindSession:
		return "model_session"
	case KindConnection:
		return "model_connection"
	case KindListeningSocket:
		return "model_listening_socket"
	case KindContainer:
		return "model_container"
	case KindRedFlag:
		return "event_redflag"
	case KindCluster:
		return "model_k8s_cluster"
	case KindNode:
		return "model_k8s_node"
	case KindSnapshot:
		return "event_top_data"
	default:
		return "unknown"
	}
}

// Kinds with stored records, in a stable order.  KindSnapshot is not here: snapshots are staged
// for the timeline, not kept in the per-kind maps.

func StoredKinds() []Kind {
	return []Kind{
		KindProcess,
		KindMachine,
		KindSession,
		KindConnection,
		KindListeningSocket,
		KindContainer,
		KindRedFlag,
		KindCluster,
		KindNode,
	}
}
