package workflow

// Step represents one stage in the procurement approval chain
type Step string

const (
	StepFaculty        Step = "faculty"
	StepHOD1           Step = "hod_1"
	StepSO1            Step = "so_1"
	StepPO1            Step = "po_1"
	StepPrincipal1     Step = "principal_1"
	StepPaymentOfficer Step = "payment_officer"
	StepSO2            Step = "so_2"
	StepHOD2           Step = "hod_2"
	StepSO3            Step = "so_3"
	StepPO2            Step = "po_2"
	StepPrincipal2     Step = "principal_2"
	StepAO             Step = "ao"
	StepCompleted      Step = "completed"
)

// Role constants bound to workflow steps
const (
	RoleFaculty        = "faculty"
	RoleHOD            = "hod"
	RoleSO             = "so"
	RolePO             = "po"
	RolePrincipal      = "principal"
	RolePaymentOfficer = "po_payment"
	RoleAO             = "ao"
	RoleAdmin          = "admin"
)

// StepConfig describes a single step in the approval chain
type StepConfig struct {
	Step               Step
	RequiredRole       string
	Label              string
	Order              int
	RequiresSignature  bool
	CanAttachDocuments bool
}

// Steps is the fixed approval sequence. The chain is a strict total order
// with no branching: transitions are always order+1 (approve) or order-1
// (return). Editing this table must preserve uniqueness of both Step and
// Order, and Order must stay contiguous from 0.
var Steps = []StepConfig{
	{Step: StepFaculty, RequiredRole: RoleFaculty, Label: "Faculty", Order: 0, RequiresSignature: true, CanAttachDocuments: true},
	{Step: StepHOD1, RequiredRole: RoleHOD, Label: "HOD (1st Review)", Order: 1, RequiresSignature: true, CanAttachDocuments: true},
	{Step: StepSO1, RequiredRole: RoleSO, Label: "Store Officer (1st Review)", Order: 2, RequiresSignature: true, CanAttachDocuments: true},
	{Step: StepPO1, RequiredRole: RolePO, Label: "Purchase Officer (1st Review)", Order: 3, RequiresSignature: true, CanAttachDocuments: true},
	{Step: StepPrincipal1, RequiredRole: RolePrincipal, Label: "Principal (1st Review)", Order: 4, RequiresSignature: true, CanAttachDocuments: false},
	{Step: StepPaymentOfficer, RequiredRole: RolePaymentOfficer, Label: "Payment Officer", Order: 5, RequiresSignature: true, CanAttachDocuments: true},
	{Step: StepSO2, RequiredRole: RoleSO, Label: "Store Officer (2nd Review)", Order: 6, RequiresSignature: true, CanAttachDocuments: true},
	{Step: StepHOD2, RequiredRole: RoleHOD, Label: "HOD (2nd Review)", Order: 7, RequiresSignature: true, CanAttachDocuments: true},
	{Step: StepSO3, RequiredRole: RoleSO, Label: "Store Officer (3rd Review)", Order: 8, RequiresSignature: true, CanAttachDocuments: true},
	{Step: StepPO2, RequiredRole: RolePO, Label: "Purchase Officer (2nd Review)", Order: 9, RequiresSignature: true, CanAttachDocuments: true},
	{Step: StepPrincipal2, RequiredRole: RolePrincipal, Label: "Principal (Final Review)", Order: 10, RequiresSignature: true, CanAttachDocuments: false},
	{Step: StepAO, RequiredRole: RoleAO, Label: "Accountant Officer", Order: 11, RequiresSignature: true, CanAttachDocuments: true},
	{Step: StepCompleted, RequiredRole: "", Label: "Completed", Order: 12, RequiresSignature: false, CanAttachDocuments: false},
}

var stepsByName = func() map[Step]StepConfig {
	m := make(map[Step]StepConfig, len(Steps))
	for _, cfg := range Steps {
		m[cfg.Step] = cfg
	}
	return m
}()

var stepsByOrder = func() map[int]StepConfig {
	m := make(map[int]StepConfig, len(Steps))
	for _, cfg := range Steps {
		m[cfg.Order] = cfg
	}
	return m
}()

// String returns the string representation of the step
func (s Step) String() string {
	return string(s)
}

// IsValid returns true if the step exists in the approval chain
func (s Step) IsValid() bool {
	_, ok := stepsByName[s]
	return ok
}

// IsTerminal returns true if the step is the terminal state (no further transitions)
func (s Step) IsTerminal() bool {
	return s == StepCompleted
}

// StepConfigFor looks up the configuration for a step
func StepConfigFor(step Step) (StepConfig, bool) {
	cfg, ok := stepsByName[step]
	return cfg, ok
}

// StepByOrder looks up the step at the given position in the chain
func StepByOrder(order int) (StepConfig, bool) {
	cfg, ok := stepsByOrder[order]
	return cfg, ok
}

// NextStep returns the step following current in the chain, or false
// when current is unknown or already the last step.
func NextStep(current Step) (Step, bool) {
	cfg, ok := stepsByName[current]
	if !ok {
		return "", false
	}
	next, ok := stepsByOrder[cfg.Order+1]
	if !ok {
		return "", false
	}
	return next.Step, true
}

// PreviousStep returns the step preceding current in the chain, or false
// when current is unknown or the entry step.
func PreviousStep(current Step) (Step, bool) {
	cfg, ok := stepsByName[current]
	if !ok || cfg.Order == 0 {
		return "", false
	}
	prev, ok := stepsByOrder[cfg.Order-1]
	if !ok {
		return "", false
	}
	return prev.Step, true
}

// CanActorApprove reports whether an actor with the given role may act on
// the given step. The admin role has unconditional access. An unknown step
// is never actionable.
func CanActorApprove(role string, step Step) bool {
	cfg, ok := stepsByName[step]
	if !ok {
		return false
	}
	if cfg.RequiredRole == "" {
		return false
	}
	return cfg.RequiredRole == role || role == RoleAdmin
}

// StepsForRole returns the non-terminal steps requiring the given role,
// in chain order.
func StepsForRole(role string) []Step {
	var out []Step
	for _, cfg := range Steps {
		if cfg.RequiredRole == role && !cfg.Step.IsTerminal() {
			out = append(out, cfg.Step)
		}
	}
	return out
}
