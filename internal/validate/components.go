package validate

// Component names, in chain order.
const (
	ZipConstruction   = "zip-construction"
	SIARDStructure    = "siard-structure"
	Metadata          = "metadata"
	TableData         = "table-data"
	DateTime          = "date-time"
	StructureFidelity = "structure-fidelity"
)

// Default returns the registry of built-in components.
func Default() *Registry {
	r := NewRegistry()
	for _, f := range []Factory{
		{Name: ZipConstruction, Next: SIARDStructure, First: true, Build: func(Options) Component { return &zipConstruction{} }},
		{Name: SIARDStructure, Next: Metadata, Build: func(Options) Component { return &siardStructure{} }},
		{Name: Metadata, Next: TableData, Build: func(Options) Component { return &metadataCheck{} }},
		{Name: TableData, Next: DateTime, Build: func(Options) Component { return &tableData{} }},
		{Name: DateTime, Next: StructureFidelity, Build: func(Options) Component { return &dateTime{} }},
		{
			Name:    StructureFidelity,
			Enabled: func(o Options) bool { return o.Reference != nil },
			Build:   func(Options) Component { return &structureFidelity{} },
		},
	} {
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

// base carries the environment for components that need nothing else.
type base struct {
	env *Env
}

func (b *base) Setup(env *Env) error {
	b.env = env
	return nil
}

func (b *base) Clean() {}
