package types

import "fmt"

// SectionType 段落类型
type SectionType int

const (
	SectionUnknown SectionType = iota
	SectionIntro
	SectionVerse
	SectionChorus
	SectionDrop
	SectionBreakdown
	SectionOutro
)

// SectionTypes 按声明顺序列出全部段落类型
var SectionTypes = []SectionType{
	SectionUnknown,
	SectionIntro,
	SectionVerse,
	SectionChorus,
	SectionDrop,
	SectionBreakdown,
	SectionOutro,
}

func (t SectionType) String() string {
	switch t {
	case SectionUnknown:
		return "unknown"
	case SectionIntro:
		return "intro"
	case SectionVerse:
		return "verse"
	case SectionChorus:
		return "chorus"
	case SectionDrop:
		return "drop"
	case SectionBreakdown:
		return "breakdown"
	case SectionOutro:
		return "outro"
	}
	return fmt.Sprintf("SectionType(%d)", int(t))
}

// ParseSectionType 解析段落类型名称
func ParseSectionType(s string) (SectionType, error) {
	for _, t := range SectionTypes {
		if t.String() == s {
			return t, nil
		}
	}
	return SectionUnknown, fmt.Errorf("未知的段落类型: %q", s)
}

// MarshalText 以小写名称序列化
func (t SectionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText 从小写名称反序列化
func (t *SectionType) UnmarshalText(b []byte) error {
	parsed, err := ParseSectionType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
