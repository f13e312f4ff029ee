package panel

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/snse/domwatch/mutation"
	"github.com/hazyhaar/snse/kit"
)

// RegisterMCP registers the panel operations as MCP tools on srv.
func (c *Controller) RegisterMCP(srv *mcp.Server) {
	c.registerStateTool(srv)
	c.registerDetectTool(srv)
	c.registerSaveTool(srv)
	c.registerRemoveTool(srv)
	c.registerOutfitTools(srv)
	c.registerGenerateTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

var itemRefSchema = inputSchema(map[string]any{
	"title": map[string]any{"type": "string", "description": "Saved item title"},
	"image": map[string]any{"type": "string", "description": "Saved item image, as listed in the wardrobe"},
}, []string{"title", "image"})

func (c *Controller) register(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	kit.RegisterMCPTool(srv, tool, kit.Chain(kit.Logging(c.logger, tool.Name))(describeErrors(endpoint)), decode)
}

// describeErrors replaces failures with their user-facing message.
func describeErrors(next kit.Endpoint) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		resp, err := next(ctx, req)
		if err != nil {
			return nil, &describedError{err: err}
		}
		return resp, nil
	}
}

type describedError struct{ err error }

func (e *describedError) Error() string { return Describe(e.err) }
func (e *describedError) Unwrap() error { return e.err }

type empty struct{}

// --- state ---

type stateResponse struct {
	State    State     `json:"state"`
	Display  Displayed `json:"display"`
	Wardrobe int       `json:"wardrobe"`
}

func (c *Controller) registerStateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "snse_state",
		Description: "Current product, outfit mode and selection, the image on display and the wardrobe size.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		w, err := c.Wardrobe(ctx)
		if err != nil {
			return nil, err
		}
		return stateResponse{State: c.State(), Display: c.Display(ctx), Wardrobe: len(w)}, nil
	}
	c.register(srv, tool, endpoint, kit.DecodeJSON[empty]())
}

// --- detect ---

func (c *Controller) registerDetectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "snse_detect",
		Description: "Report a product detected on a page. The title is classified and becomes the current product.",
		InputSchema: inputSchema(map[string]any{
			"title":    map[string]any{"type": "string", "description": "Product title"},
			"imageRef": map[string]any{"type": "string", "description": "Absolute product image URL"},
			"pageUrl":  map[string]any{"type": "string", "description": "Product page URL"},
		}, []string{"title"}),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		d := req.(*mutation.Detection)
		d.Type = mutation.TypeProductDetected
		return c.HandleDetection(ctx, *d)
	}
	c.register(srv, tool, endpoint, kit.DecodeJSON[mutation.Detection]())
}

// --- wardrobe ---

func (c *Controller) registerSaveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "snse_save",
		Description: "Save the current product to the wardrobe. Saving the same product twice is a no-op.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		item, added, err := c.Save(ctx)
		if err != nil {
			return nil, err
		}
		return saveResponse{Item: item, Added: added}, nil
	}
	c.register(srv, tool, endpoint, kit.DecodeJSON[empty]())
}

func (c *Controller) registerRemoveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "snse_remove",
		Description: "Remove an item from the wardrobe and from the outfit selection.",
		InputSchema: itemRefSchema,
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*itemRef)
		return c.Remove(ctx, r.Title, r.Image)
	}
	c.register(srv, tool, endpoint, kit.DecodeJSON[itemRef]())
}

// --- outfit ---

func (c *Controller) registerOutfitTools(srv *mcp.Server) {
	c.register(srv, &mcp.Tool{
		Name:        "snse_outfit_start",
		Description: "Enter outfit mode, seeding the current product's slot.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(context.Context, any) (any, error) {
		return c.StartOutfit()
	}, kit.DecodeJSON[empty]())

	c.register(srv, &mcp.Tool{
		Name:        "snse_outfit_toggle",
		Description: "Select or deselect a saved item for its outfit slot.",
		InputSchema: itemRefSchema,
	}, func(ctx context.Context, req any) (any, error) {
		r := req.(*itemRef)
		return c.Toggle(ctx, r.Title, r.Image)
	}, kit.DecodeJSON[itemRef]())

	c.register(srv, &mcp.Tool{
		Name:        "snse_outfit_exit",
		Description: "Leave outfit mode and clear the selection.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, func(context.Context, any) (any, error) {
		return c.ExitOutfit(), nil
	}, kit.DecodeJSON[empty]())
}

// --- generate ---

func (c *Controller) registerGenerateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "snse_generate",
		Description: "Render the selected top, bottom and shoes on the profile likeness. Returns the composite as a data URL.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		ref, err := c.Generate(ctx)
		if err != nil {
			return nil, err
		}
		return generateResponse{Ref: ref, State: c.State()}, nil
	}
	c.register(srv, tool, endpoint, kit.DecodeJSON[empty]())
}
