package workflow

// Action 工作流动作
type Action string

const (
	ActionApprove  Action = "APPROVE"
	ActionReject   Action = "REJECT"
	ActionBypass   Action = "BYPASS"
	ActionEscalate Action = "ESCALATE"
	ActionPrint    Action = "PRINT"
)

// IsValid 判断动作是否合法
func (a Action) IsValid() bool {
	switch a {
	case ActionApprove, ActionReject, ActionBypass, ActionEscalate, ActionPrint:
		return true
	}
	return false
}

func (a Action) String() string {
	return string(a)
}

// Status 参与者状态
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusCancelled  Status = "CANCELLED"
	StatusPrinted    Status = "PRINTED"
)

// IsResolved 已拒绝或已取消的参与者不再流转
func (s Status) IsResolved() bool {
	return s == StatusRejected || s == StatusCancelled
}

// ActorKind 操作人类型
type ActorKind string

const (
	ActorHuman  ActorKind = "human"
	ActorSystem ActorKind = "system"
)

// SystemUserID 自动动作持久化时使用的用户 ID
const SystemUserID = "system"

// Actor 操作人
type Actor struct {
	Kind ActorKind
	ID   string
}

// HumanActor 创建人工操作人
func HumanActor(userID string) Actor {
	return Actor{Kind: ActorHuman, ID: userID}
}

// SystemActor 创建系统操作人
func SystemActor() Actor {
	return Actor{Kind: ActorSystem, ID: SystemUserID}
}

// IsSystem 是否为系统操作人
func (a Actor) IsSystem() bool {
	return a.Kind == ActorSystem
}

// UserID 持久化使用的用户 ID
func (a Actor) UserID() string {
	if a.Kind == ActorSystem {
		return SystemUserID
	}
	return a.ID
}

// Participant 参与者在工作流中的投影
type Participant struct {
	ID            string
	TenantID      string
	EventID       string
	CurrentStepID string
	Status        Status
	Extras        map[string]interface{}
	Version       int
	Snapshot      *Snapshot
}

// Vars 返回条件求值使用的上下文副本
func (p *Participant) Vars() map[string]interface{} {
	vars := make(map[string]interface{}, len(p.Extras))
	for k, v := range p.Extras {
		vars[k] = v
	}
	return vars
}
