package main

import (
	_ "github.com/gezibash/auditfwd/internal/cursorstore/physical/badger"
	_ "github.com/gezibash/auditfwd/internal/cursorstore/physical/file"
	_ "github.com/gezibash/auditfwd/internal/cursorstore/physical/memory"
	_ "github.com/gezibash/auditfwd/internal/cursorstore/physical/none"
	_ "github.com/gezibash/auditfwd/internal/cursorstore/physical/redis"
	_ "github.com/gezibash/auditfwd/internal/cursorstore/physical/s3"
	_ "github.com/gezibash/auditfwd/internal/cursorstore/physical/sqlite"
)
