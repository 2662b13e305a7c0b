package command

// Operation is one step of the agenda.
type Operation interface {
	Name() string
	Run(ctx *Context) error
}

// Agenda is a FIFO queue of planned operations, drained within one command.
type Agenda struct {
	operations []Operation
	executed   int
}

// Plan appends an operation.
func (a *Agenda) Plan(operation Operation) {
	a.operations = append(a.operations, operation)
}

// IsEmpty returns true when nothing is planned.
func (a *Agenda) IsEmpty() bool {
	return len(a.operations) == 0
}

// Next pops the oldest planned operation, or nil.
func (a *Agenda) Next() Operation {
	if len(a.operations) == 0 {
		return nil
	}
	op := a.operations[0]
	a.operations[0] = nil
	a.operations = a.operations[1:]
	return op
}

// Run drains the agenda. limit bounds the number of executed operations
// (0 means unlimited), so a graph cycle without wait states fails instead
// of spinning forever.
func (a *Agenda) Run(ctx *Context, limit int) error {
	for op := a.Next(); op != nil; op = a.Next() {
		a.executed++
		if limit > 0 && a.executed > limit {
			return NewDomainError("operation limit %d exceeded", limit)
		}
		if err := op.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Executed returns the number of operations run so far.
func (a *Agenda) Executed() int {
	return a.executed
}
