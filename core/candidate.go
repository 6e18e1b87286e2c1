package core

// Identifier 是实体的稳定唯一标识。
// Type 可选，用于区分同一 ID 空间下的不同实体（product / brand / query 等）。
type Identifier struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`
}

func (id Identifier) String() string {
	if id.Type == "" {
		return id.ID
	}
	return id.Type + ":" + id.ID
}

// Entity 是参与排序的领域对象（商品、品牌等）。
// 排序链路只通过 Identifier 或 KeyFunc 读取实体，不关心其内部结构。
type Entity interface {
	Identifier() Identifier
}

// KeyFunc 从实体中提取用于匹配 boost / pin 的 key。
type KeyFunc func(Entity) string

// DefaultKey 返回实体自身的 ID。
func DefaultKey(e Entity) string {
	if e == nil {
		return ""
	}
	return e.Identifier().ID
}

// KeyOrDefault 在 fn 为 nil 时回退到 DefaultKey。
func KeyOrDefault(fn KeyFunc) KeyFunc {
	if fn == nil {
		return DefaultKey
	}
	return fn
}

// BasicEntity 是 Entity 的通用实现。
// Meta 承载展示/规则用的属性（如 brand、category），Features 供打分模型使用。
type BasicEntity struct {
	ID       string             `json:"id"`
	Type     string             `json:"type,omitempty"`
	Meta     map[string]any     `json:"meta,omitempty"`
	Features map[string]float64 `json:"features,omitempty"`
}

func NewEntity(id, typ string) *BasicEntity {
	return &BasicEntity{
		ID:       id,
		Type:     typ,
		Meta:     make(map[string]any),
		Features: make(map[string]float64),
	}
}

func (e *BasicEntity) Identifier() Identifier {
	return Identifier{ID: e.ID, Type: e.Type}
}

// ScoredCandidate 是实体与分数的不可变组合。
// 分数变化时总是生成新的值（WithScore），从不原地修改。
type ScoredCandidate struct {
	Entity Entity
	Score  float64
}

// WithScore 返回替换了分数的新候选。
func (c ScoredCandidate) WithScore(score float64) ScoredCandidate {
	return ScoredCandidate{Entity: c.Entity, Score: score}
}

// Key 使用 fn（nil 时为 DefaultKey）提取候选的 key。
func (c ScoredCandidate) Key(fn KeyFunc) string {
	return KeyOrDefault(fn)(c.Entity)
}

// NewCandidates 按给定顺序把实体和分数组装成候选列表；scores 中缺失的实体分数为 0。
func NewCandidates(entities []Entity, scores map[string]float64) []ScoredCandidate {
	out := make([]ScoredCandidate, 0, len(entities))
	for _, e := range entities {
		if e == nil {
			continue
		}
		out = append(out, ScoredCandidate{Entity: e, Score: scores[e.Identifier().ID]})
	}
	return out
}
