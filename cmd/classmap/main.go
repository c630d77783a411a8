// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command classmap builds C++ inheritance maps and class attributes.
//
// Usage:
//
//	classmap analyze widget.hpp gadget.cpp
//	classmap analyze --format json --store ./classmap.db src/*.hpp
//	classmap analyze --watch widget.hpp
//	classmap serve --addr 127.0.0.1:8089
//	classmap snapshots list --store ./classmap.db
//	classmap snapshots show widget.hpp --store ./classmap.db
//
// Example requests against serve:
//
//	curl http://localhost:8089/v1/classmap/health
//
//	curl -X POST http://localhost:8089/v1/classmap/analyze \
//	  -H "Content-Type: application/json" \
//	  -d '{"file_path": "a.hpp", "source": "class B {}; class D : public B {};"}'
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(os.Stderr, err))
		os.Exit(1)
	}
}
