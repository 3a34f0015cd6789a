package translator

import "fmt"

// Prompt builds the fixed three-part request for a chunk. Source and Target
// name the two operator vocabularies; TargetName, when set, is the longer
// form used inside the instruction.
type Prompt struct {
	Source     string
	Target     string
	TargetName string
}

// DefaultPrompt rewrites PyTorch graph dumps into Tenstorrent TTNN ops.
var DefaultPrompt = Prompt{Source: "pytorch", Target: "TTNN", TargetName: "Tenstorrent's TTNN"}

// Instruction is the context-free directive sent as the first part.
func (p Prompt) Instruction() string {
	target := p.TargetName
	if target == "" {
		target = p.Target
	}
	return fmt.Sprintf("Start a new chat. Edit the nodes in the following %s graph chunk to use %s ops instead, "+
		"and output the new graph chunk without any additional text. "+
		"If the conversion for any node is not one-to-one, come up with a new translation for that node.",
		p.Source, target)
}

// Parts returns the ordered segments: instruction, chunk, reference.
func (p Prompt) Parts(chunk, reference string) []string {
	return []string{
		p.Instruction(),
		fmt.Sprintf("\n%s graph chunk:\n%s", p.Source, chunk),
		fmt.Sprintf("\n%s ops:\n%s", p.Target, reference),
	}
}
