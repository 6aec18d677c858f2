package ast

// McDocFile is the parsed form of one schema source file.
type McDocFile struct {
	Imports []Import
	Decls   []Decl
}

// ImportPath is either an Absolute path (::a::b::C) or a Relative one
// (super::a::C, exactly one leading super).
type ImportPath struct {
	Segments []string
	Absolute bool
}

type Import struct {
	Path ImportPath
	Pos  Pos
}

// Decl is the sum type of top-level declarations.
type Decl interface {
	declNode()
}

type StructDecl struct {
	Name        string
	Members     []Member
	Annotations []Annotation
	Pos         Pos
}

func (*StructDecl) declNode() {}

type EnumVariant struct {
	Name        string
	Value       Literal // nil if not given
	Annotations []Annotation
}

type EnumDecl struct {
	Name        string
	BaseType    string // empty if absent
	Variants    []EnumVariant
	Annotations []Annotation
	Pos         Pos
}

func (*EnumDecl) declNode() {}

type TypeDecl struct {
	Name        string
	TypeParams  []string
	Type        TypeExpr
	Annotations []Annotation
	Pos         Pos
}

func (*TypeDecl) declNode() {}

// DispatchTarget is either a concrete key (Specific) or the catch-all
// %unknown fallback.
type DispatchTarget struct {
	Name      string
	IsUnknown bool
}

type DispatchSource struct {
	Registry string
	Key      string // empty if HasKey is false
	HasKey   bool
}

type DispatchDecl struct {
	Source      DispatchSource
	Targets     []DispatchTarget
	TargetType  TypeExpr
	Annotations []Annotation
	Pos         Pos
}

func (*DispatchDecl) declNode() {}

// Member is the sum type of struct members.
type Member interface {
	memberNode()
}

type FieldMember struct {
	Name        string
	Type        TypeExpr
	Optional    bool
	Annotations []Annotation
	Pos         Pos
}

func (*FieldMember) memberNode() {}

type DynamicFieldMember struct {
	KeyType        TypeExpr
	KeyAnnotations []Annotation // annotations written inside the brackets, before KeyType
	ValueType      TypeExpr
	Optional       bool
	Annotations    []Annotation
	Pos            Pos
}

func (*DynamicFieldMember) memberNode() {}

// DynRef is either a plain field name or a %special key.
type DynRef struct {
	Name      string
	IsSpecial bool
}

// SpreadMember is `...ns:reg[[field]]`, `...ns:reg`, or `...InlineStruct`.
// Exactly one of InlineStruct or (Namespace, Registry) is set.
type SpreadMember struct {
	InlineStruct *StructDecl
	Namespace    string
	Registry     string
	DynamicKey   *DynRef
	Annotations  []Annotation
	Pos          Pos
}

func (*SpreadMember) memberNode() {}

// Literal is the sum type of literal values (used both in TypeExpr and in
// enum variant values).
type Literal interface {
	literalNode()
}

type StringLiteral struct{ Value string }

func (StringLiteral) literalNode() {}

type NumberLiteral struct{ Value float64 }

func (NumberLiteral) literalNode() {}

type BoolLiteral struct{ Value bool }

func (BoolLiteral) literalNode() {}

// RangeConstraint is `@ min..max`, with either bound optionally omitted.
type RangeConstraint struct {
	Min *float64
	Max *float64
	Pos Pos
}

// TypeExpr is the sum type of type expressions.
type TypeExpr interface {
	typeExprNode()
}

type SimpleType struct {
	Name string
	Pos  Pos
}

func (SimpleType) typeExprNode() {}

type ArrayType struct {
	Elem       TypeExpr
	Constraint *RangeConstraint // array length constraint, nil if absent
	Pos        Pos
}

func (ArrayType) typeExprNode() {}

type UnionType struct {
	Variants []TypeExpr
	Pos      Pos
}

func (UnionType) typeExprNode() {}

// StructType is an inline (possibly anonymous) struct used as a type
// expression, e.g. the value type of a dispatch target or a field type.
type StructType struct {
	Members []Member
	Pos     Pos
}

func (StructType) typeExprNode() {}

type GenericType struct {
	Name string
	Args []TypeExpr
	Pos  Pos
}

func (GenericType) typeExprNode() {}

type ReferenceType struct {
	Path ImportPath
	Pos  Pos
}

func (ReferenceType) typeExprNode() {}

// SpreadType is `...ns:reg[[field]]` used directly as a type expression.
type SpreadType struct {
	Namespace  string
	Registry   string
	DynamicKey *DynRef
	Pos        Pos
}

func (SpreadType) typeExprNode() {}

type LiteralType struct {
	Value Literal
	Pos   Pos
}

func (LiteralType) typeExprNode() {}

// ConstrainedType is `base @ min..max` applied to a non-array base type.
type ConstrainedType struct {
	Base  TypeExpr
	Range RangeConstraint
	Pos   Pos
}

func (ConstrainedType) typeExprNode() {}

// AnnotationData is the sum type of annotation payloads.
type AnnotationData interface {
	annotationData()
}

type EmptyAnnotation struct{}

func (EmptyAnnotation) annotationData() {}

type SimpleAnnotation struct{ Value string }

func (SimpleAnnotation) annotationData() {}

// AnnotationValue is one value inside a Complex annotation's parameter
// map: a quoted string, a bracketed list, a bare boolean, or a bare token.
type AnnotationValue struct {
	Str    string
	Bool   bool
	List   []string
	IsBool bool
	IsList bool
}

type ComplexAnnotation struct {
	Params map[string]AnnotationValue
}

func (ComplexAnnotation) annotationData() {}

type Annotation struct {
	Name string
	Data AnnotationData
	Pos  Pos
}

// LookupAnnotation returns the first annotation with that name, if present.
func LookupAnnotation(anns []Annotation, name string) (Annotation, bool) {
	for _, a := range anns {
		if a.Name == name {
			return a, true
		}
	}
	return Annotation{}, false
}
