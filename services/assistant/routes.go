// Copyright (C) 2025 Savwangs
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package assistant

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the assistant API on a router group.
//
// Routes:
//
//	POST /ask           answer one question
//	GET  /conversation  session history summary
//	POST /clear         reset the conversation
//	GET  /health        liveness and catalog size
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/ask", h.Ask)
	rg.GET("/conversation", h.Conversation)
	rg.POST("/clear", h.Clear)
	rg.GET("/health", h.Health)
}
