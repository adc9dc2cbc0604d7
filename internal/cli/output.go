package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/bayleafwalker/packhost/injector"
)

func isLoadError(err error) bool {
	var loadErr *injector.LoadError
	return errors.As(err, &loadErr)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// printPackages renders pkgs as a table. When order is non-empty packages
// are sorted by it and numbered.
func printPackages(w io.Writer, pkgs []*injector.Package, order []string) {
	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i + 1
	}
	pkgs = append([]*injector.Package(nil), pkgs...)
	if len(order) > 0 {
		sort.SliceStable(pkgs, func(i, j int) bool { return pos[pkgs[i].Name()] < pos[pkgs[j].Name()] })
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"#", "NAME", "VERSION", "STATE", "DEPENDENCIES", "ORIGIN"})
	for _, pkg := range pkgs {
		n := "-"
		if p, ok := pos[pkg.Name()]; ok {
			n = fmt.Sprint(p)
		}
		t.AppendRow(table.Row{n, pkg.Name(), pkg.Version(), pkg.State(), formatDeps(pkg.Dependencies()), pkg.Origin()})
	}
	t.Render()
}

func printErrors(w io.Writer, title string, err error) {
	t := newTable(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"ERROR"})
	for _, e := range flatten(err) {
		t.AppendRow(table.Row{e.Error()})
	}
	t.Render()
}

func formatDeps(deps map[string]string) string {
	if len(deps) == 0 {
		return "-"
	}
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + " " + deps[name]
	}
	return strings.Join(parts, ", ")
}

// flatten expands joined errors one level deep.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		return multi.Unwrap()
	}
	return []error{err}
}
