// Copyright 2019-2020 Intel Corporation. All Rights Reserved.
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

// Package log is a small leveled, per-source logger. Severity and tracing
// (debug) are controlled per logger instance; a single active Backend does
// the actual formatting/emitting. The default backend buffers messages
// until the first error (or an explicit Flush, or a full buffer), then emits
// them and every later one immediately -- quiet runs stay quiet, but a
// single problem still brings its lead-up along with it.
package log

import (
	"fmt"
	"sync"
)

// registry is our single package-level logger registry.
type registry struct {
	sync.RWMutex
	backend map[string]BackendFn     // registered backend constructors
	active  Backend                  // currently active backend instance
	level   Level                    // globally suppressed severity floor
	forced  bool                     // force debug/tracing for all loggers
	configs map[logger]config        // per-logger logging/tracing state
	sources map[logger]string        // per-logger source name
	byName  map[string]logger        // source name to logger id, for reuse
	nextID  logger                   // next logger id to hand out
}

// levelHighest is the highest "real" severity; backend.go defines a couple
// of internal control pseudo-levels above it for its request queue.
const levelHighest = LevelPanic

var log = &registry{
	backend: make(map[string]BackendFn),
	configs: make(map[logger]config),
	sources: make(map[logger]string),
	byName:  make(map[string]logger),
	level:   LevelInfo,
}

// get returns the logger for source, creating one if this is the first use.
func (r *registry) get(source string) logger {
	r.Lock()
	defer r.Unlock()

	if id, ok := r.byName[source]; ok {
		return id
	}

	if r.nextID >= maxLoggers {
		panic(fmt.Sprintf("log: too many loggers (source %q)", source))
	}

	id := r.nextID
	r.nextID++

	r.byName[source] = id
	r.sources[id] = source
	r.configs[id] = mkConfig(id, true, false)

	if r.active == nil {
		r.activateLocked("")
	}

	return id
}

// activateLocked selects and starts a backend; the registry lock must be held.
func (r *registry) activateLocked(name string) {
	if name == "" {
		name = FmtBackendName
	}
	fn, ok := r.backend[name]
	if !ok {
		fn = r.backend[FmtBackendName]
	}
	if fn == nil {
		return
	}
	if r.active != nil {
		r.active.Stop()
	}
	r.active = fn()
	r.active.SetSourceAlignment(r.maxSourceLenLocked())
}

// maxSourceLenLocked returns the length of the longest registered source name.
func (r *registry) maxSourceLenLocked() int {
	max := 0
	for _, s := range r.sources {
		if len(s) > max {
			max = len(s)
		}
	}
	return max
}

// SetLevel sets the global minimum severity level passed through to the active backend.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.level = level
}

// Get returns the Logger for the given source, creating it on first use.
func Get(source string) Logger {
	return log.get(source)
}

// NewLogger is an alias for Get, matching the teacher's constructor naming.
func NewLogger(source string) Logger {
	return Get(source)
}

// ForceDebug enables or disables tracing for every logger regardless of its
// individual debug setting, the way cmd/coreselectd's --force-debug flag does.
func ForceDebug(state bool) {
	log.Lock()
	defer log.Unlock()
	log.forced = state
}
