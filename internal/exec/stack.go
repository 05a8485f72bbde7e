package exec

import "github.com/gmofishsauce/h68kld/internal/objfmt"

// attr classifies a calculator-stack slot as a plain numeric constant or
// an address-attributed value referring to a symbol/section whose final
// value depends on layout (spec.md §9: "Calculator stack with
// address-attribute flag"). This replaces a value-kind inheritance
// hierarchy with a simple tagged pair, exactly as spec.md §9 prescribes.
type attr int

const (
	attrConstant attr = iota
	attrAddress
)

// stackVal is one calculator-stack slot: a 32-bit value plus its
// attribute. For attrAddress, Section names the section kind the value
// is relative to — needed by the "sub address (same-section-kind)"
// legality check and by the relocatable-kind test that decides whether
// a store of this value must carry a relocation entry.
type stackVal struct {
	value   int32
	attr    attr
	section objfmt.SectionKind
}

func constVal(v int32) stackVal { return stackVal{value: v, attr: attrConstant} }

func addrVal(v int32, section objfmt.SectionKind) stackVal {
	return stackVal{value: v, attr: attrAddress, section: section}
}

func (s stackVal) isAddress() bool { return s.attr == attrAddress }

const maxStackDepth = 1024

// calcStack is the small (<=1024 deep) stack the 80/a0/9x opcode
// families operate on (spec.md §4.6 items 3-5, §GLOSSARY).
type calcStack struct {
	vals []stackVal
}

func (s *calcStack) push(v stackVal) error {
	if len(s.vals) >= maxStackDepth {
		return errStackOverflow
	}
	s.vals = append(s.vals, v)
	return nil
}

func (s *calcStack) pop() (stackVal, error) {
	if len(s.vals) == 0 {
		return stackVal{}, errStackUnderflow
	}
	v := s.vals[len(s.vals)-1]
	s.vals = s.vals[:len(s.vals)-1]
	return v, nil
}

func (s *calcStack) depth() int { return len(s.vals) }
