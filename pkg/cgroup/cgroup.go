// Copyright 2020 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cgroup

// Attribute is one controller attribute (name, value) pair. Name always
// begins with "<controller>." when written out, per spec.md §3.
type Attribute struct {
	Name  string
	Value string
}

// Controller is one ordered sequence of attribute values for a single
// controller name (cpu, memory, ...). Attribute names within a
// Controller are unique.
type Controller struct {
	Name   string
	Values []Attribute
}

// Get returns the value for name and whether it was present.
func (c *Controller) Get(name string) (string, bool) {
	for _, a := range c.Values {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Set adds or overwrites an attribute, preserving insertion order.
func (c *Controller) Set(name, value string) {
	for i := range c.Values {
		if c.Values[i].Name == name {
			c.Values[i].Value = value
			return
		}
	}
	c.Values = append(c.Values, Attribute{Name: name, Value: value})
}

// Clone deep-copies a Controller record.
func (c *Controller) Clone() *Controller {
	cp := &Controller{Name: c.Name, Values: make([]Attribute, len(c.Values))}
	copy(cp.Values, c.Values)
	return cp
}

// Cgroup is the in-memory representation of a cgroup: its slash-
// normalised name, per-controller attribute records, and ownership.
// It is a pure value type the library never retains a reference to
// after a call returns (spec.md §3 "Lifecycles").
type Cgroup struct {
	Name string

	TasksUID, TasksGID     int
	ControlUID, ControlGID int

	Controllers []*Controller
}

// New creates an empty Cgroup object for name.
func New(name string) *Cgroup {
	return &Cgroup{Name: normaliseName(name)}
}

// AddController is idempotent by name: a second call with the same
// name returns the existing record rather than creating a duplicate,
// per spec.md §4.D.
func (g *Cgroup) AddController(name string) *Controller {
	if c := g.Controller(name); c != nil {
		return c
	}
	c := &Controller{Name: name}
	g.Controllers = append(g.Controllers, c)
	return c
}

// Controller returns the named controller record, or nil.
func (g *Cgroup) Controller(name string) *Controller {
	for _, c := range g.Controllers {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// HasController reports whether g declares controller name.
func (g *Cgroup) HasController(name string) bool {
	return g.Controller(name) != nil
}

// ControllerNames returns the declared controller names, in order.
func (g *Cgroup) ControllerNames() []string {
	names := make([]string, len(g.Controllers))
	for i, c := range g.Controllers {
		names[i] = c.Name
	}
	return names
}

// Free drops all controller records, mirroring cgroup_free_controllers.
func (g *Cgroup) Free() {
	g.Controllers = nil
}

// CopyController deep-copies one controller record from src into dst
// (by name), per spec.md §4.D.
func CopyController(dst, src *Cgroup, name string) bool {
	s := src.Controller(name)
	if s == nil {
		return false
	}
	clone := s.Clone()
	for i, c := range dst.Controllers {
		if c.Name == name {
			dst.Controllers[i] = clone
			return true
		}
	}
	dst.Controllers = append(dst.Controllers, clone)
	return true
}

// Copy deep-copies every controller of src into dst, preserving order.
// dst and src must be distinct objects.
func Copy(dst, src *Cgroup) error {
	if dst == src {
		return newError("Copy", InvalidOperation, nil)
	}
	dst.Controllers = nil
	for _, c := range src.Controllers {
		dst.Controllers = append(dst.Controllers, c.Clone())
	}
	dst.TasksUID, dst.TasksGID = src.TasksUID, src.TasksGID
	dst.ControlUID, dst.ControlGID = src.ControlUID, src.ControlGID
	return nil
}

// Equal reports deep structural equality of two cgroups (ownership and
// controller/attribute sets), used by the copy round-trip property in
// spec.md §8.
func (g *Cgroup) Equal(other *Cgroup) bool {
	if other == nil || g.Name != other.Name {
		return false
	}
	if g.TasksUID != other.TasksUID || g.TasksGID != other.TasksGID ||
		g.ControlUID != other.ControlUID || g.ControlGID != other.ControlGID {
		return false
	}
	if len(g.Controllers) != len(other.Controllers) {
		return false
	}
	for _, c := range g.Controllers {
		oc := other.Controller(c.Name)
		if oc == nil || len(oc.Values) != len(c.Values) {
			return false
		}
		for _, a := range c.Values {
			v, ok := oc.Get(a.Name)
			if !ok || v != a.Value {
				return false
			}
		}
	}
	return true
}
