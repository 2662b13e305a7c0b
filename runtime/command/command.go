package command

// Command is a unit of work executed by the Executor.
type Command interface {
	Name() string
	Execute(ctx *Context) error
}

type funcCommand struct {
	name string
	fn   func(ctx *Context) error
}

func (c *funcCommand) Name() string { return c.name }

func (c *funcCommand) Execute(ctx *Context) error { return c.fn(ctx) }

// New creates a named command from a function.
func New(name string, fn func(ctx *Context) error) Command {
	return &funcCommand{name: name, fn: fn}
}
