package callback

// Phase is a step of callback processing.
type Phase string

const (
	PhaseProcessing  Phase = "processing"
	PhaseValidating  Phase = "validating"
	PhaseExchanging  Phase = "exchanging"
	PhaseConfiguring Phase = "configuring"
	PhaseSuccess     Phase = "success"
	PhaseError       Phase = "error"
)

// Terminal reports whether p ends processing.
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseError
}
