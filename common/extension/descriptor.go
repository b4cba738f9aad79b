/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package extension

import (
	"bufio"
	"io/fs"
	"path"
	"strings"

	perrors "github.com/pkg/errors"

	"github.com/dubbo-go-mesh/orchestrator/common/logger"
)

// DescriptorPrefixes are the three directory prefixes descriptor files
// are discovered under, relative to a supplied fs.FS (spec.md §4.A/§6).
var DescriptorPrefixes = []string{
	"META-INF/dubbo/internal/",
	"META-INF/dubbo/",
	"META-INF/services/",
}

// LoadDescriptors walks every DescriptorPrefixes directory in fsys and
// applies each `<interfaceName>` file found there. Java Dubbo's SPI
// descriptor lines name a fully-qualified class Go then loads via
// reflection; this module cannot load a class from a string, so a
// descriptor line's right-hand side must instead name a constructor
// already registered under that identifier via RegisterConstructor (see
// the package doc comment). LoadDescriptors therefore does not
// instantiate anything by itself — it records the name ordering and
// default selection a real SPI loader would have derived from file
// order, so GetActivateExtension's tie-breaking matches what the
// descriptor file expresses, and for a name=identifier line it records
// "name" as an alias that builds through identifier's Constructor.
//
// A line is one of:
//
//	name=identifier   // registers "name" as an order entry aliased to identifier
//	identifier        // bare identifier, aliased to itself
//	# comment         // ignored
//
// Blank lines are ignored. identifier must already have a Constructor
// registered for interfaceName (via RegisterConstructor) or the name is
// recorded but GetExtension will fail for it until one is registered.
func LoadDescriptors(fsys fs.FS) error {
	for _, prefix := range DescriptorPrefixes {
		entries, err := fs.ReadDir(fsys, strings.TrimSuffix(prefix, "/"))
		if err != nil {
			continue // prefix directory not present is not an error
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			interfaceName := entry.Name()
			if err := loadDescriptorFile(fsys, path.Join(prefix, interfaceName), interfaceName); err != nil {
				return perrors.Wrapf(err, "descriptor %s", interfaceName)
			}
		}
	}
	return nil
}

func loadDescriptorFile(fsys fs.FS, filePath, interfaceName string) error {
	f, err := fsys.Open(filePath)
	if err != nil {
		return perrors.WithStack(err)
	}
	defer f.Close()

	p := pointFor(interfaceName)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var name, ident string
		if idx := strings.Index(line, "="); idx >= 0 {
			name = strings.TrimSpace(line[:idx])
			ident = strings.TrimSpace(line[idx+1:])
		} else {
			name = line
		}
		if name == "" {
			logger.Warnf("extension: skipping malformed descriptor line %s:%d", filePath, lineNo)
			continue
		}

		p.mu.Lock()
		if _, exists := p.constructors[name]; !exists {
			// record ordering even if no constructor is registered yet;
			// RegisterConstructor called later for this name will reuse
			// this position instead of appending a duplicate.
			found := false
			for _, existing := range p.order {
				if existing == name {
					found = true
					break
				}
			}
			if !found {
				p.order = append(p.order, name)
			}
			if ident != "" && ident != name {
				target := ident
				p.constructors[name] = func() any {
					p.mu.Lock()
					ctor := p.constructors[target]
					p.mu.Unlock()
					if ctor == nil {
						return nil
					}
					return ctor()
				}
			}
		}
		if p.defaultName == "" {
			p.defaultName = name
		}
		p.mu.Unlock()
	}
	return scanner.Err()
}
