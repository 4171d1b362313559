package assets

import (
	"strings"

	"git.home.luguber.info/inful/assetflow/internal/config"
	ferrors "git.home.luguber.info/inful/assetflow/internal/foundation/errors"
	"git.home.luguber.info/inful/assetflow/internal/task"
)

// VendorPrefix prefixes the task id of every vendor copy.
const VendorPrefix = "vendor:"

var kindByCategory = map[config.Category]task.Kind{
	config.CategoryStyles:    task.KindStyle,
	config.CategoryScripts:   task.KindScript,
	config.CategoryLint:      task.KindScript,
	config.CategoryTemplates: task.KindTemplate,
	config.CategoryImages:    task.KindImage,
	config.CategoryStatic:    task.KindStatic,
}

// Tasks builds one task per enabled category followed by one per vendor
// entry. Task ids are category names; vendor ids are VendorPrefix + name.
func Tasks(cfg *config.Config) ([]*task.Task, error) {
	var out []*task.Task
	for _, c := range config.Categories() {
		a := cfg.Assets.Asset(c)
		if a == nil || a.Disabled {
			continue
		}
		action, err := actionFor(c, a)
		if err != nil {
			return nil, err
		}
		out = append(out, &task.Task{
			ID:        string(c),
			Kind:      kindByCategory[c],
			DependsOn: append([]string(nil), a.DependsOn...),
			Root:      a.Src,
			Inputs:    append([]string(nil), a.Inputs...),
			Exclude:   append([]string(nil), a.Exclude...),
			Output:    a.Dest,
			Action:    action,
		})
	}
	for _, v := range cfg.Vendor {
		out = append(out, &task.Task{
			ID:     VendorPrefix + strings.TrimSpace(v.Name),
			Kind:   task.KindStatic,
			Root:   v.Src,
			Inputs: append([]string(nil), v.Inputs...),
			Output: v.Dest,
			Action: &CopyAction{Dest: v.Dest},
		})
	}
	return out, nil
}

// Register builds the configured tasks into reg and validates it.
func Register(reg *task.Registry, cfg *config.Config) error {
	tasks, err := Tasks(cfg)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return reg.Validate()
}

func actionFor(c config.Category, a *config.AssetConfig) (task.Action, error) {
	// Template partials invalidate the task but are never emitted.
	skipPartials := c == config.CategoryTemplates
	switch a.Renderer {
	case config.RendererCopy:
		return &CopyAction{Dest: a.Dest, SkipPartials: skipPartials}, nil
	case config.RendererCommand:
		return &CommandAction{Args: append([]string(nil), a.Command...), Tmp: a.Tmp, Dest: a.Dest}, nil
	case config.RendererMarkdown:
		return &MarkdownAction{Dest: a.Dest}, nil
	default:
		return nil, ferrors.ConfigError("unknown renderer").
			WithContext("category", string(c)).
			WithContext("renderer", string(a.Renderer)).
			Build()
	}
}

func isPartial(rel string) bool {
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	return strings.HasPrefix(base, "_")
}
