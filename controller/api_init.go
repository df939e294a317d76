package controller

import "github.com/labstack/echo/v4"

func (ctrl *controller) apiInit(e *echo.Echo) {
	api := e.Group("/api/v1")
	api.Use(ctrl.APIKeyAuthMiddleware())

	// token management
	api.POST("/tokens", ctrl.apiCreateToken, ctrl.requireWriteScope)
	api.GET("/tokens", ctrl.apiListTokens)
	api.DELETE("/tokens/:id", ctrl.apiRevokeToken, ctrl.requireWriteScope)

	// account
	api.GET("/account", ctrl.apiAccountGet)
	api.PATCH("/account", ctrl.apiAccountUpdate, ctrl.requireWriteScope)

	// posts
	api.GET("/posts", ctrl.apiPostList)
	api.GET("/posts/:id", ctrl.apiPostGet)
	api.POST("/posts", ctrl.apiPostCreate, ctrl.requireWriteScope)
	api.PUT("/posts/:id", ctrl.apiPostUpdate, ctrl.requireWriteScope)
	api.DELETE("/posts/:id", ctrl.apiPostDelete, ctrl.requireWriteScope)

	// follows
	api.GET("/follows", ctrl.apiFollowList)
	api.POST("/follows", ctrl.apiFollowCreate, ctrl.requireWriteScope)
	api.DELETE("/follows", ctrl.apiFollowRemove, ctrl.requireWriteScope)

	// media metadata (uploading goes through /media/upload with a session)
	api.GET("/media", ctrl.apiMediaList)
	api.GET("/media/:id", ctrl.apiMediaGet)
	api.PATCH("/media/:id", ctrl.apiMediaUpdate, ctrl.requireWriteScope)
	api.DELETE("/media/:id", ctrl.apiMediaDelete, ctrl.requireWriteScope)

	// activity feed
	api.GET("/activity", ctrl.apiActivity)
}
