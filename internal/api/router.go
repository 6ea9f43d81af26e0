package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/vibedl/vibedl/internal/api/controllers"
	"github.com/vibedl/vibedl/internal/app"
)

func RegisterRoutes(e *echo.Echo, appCtx *app.Context) {

	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: appCtx.Config.API.AllowOrigins,
	}))

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			appCtx.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	videoCtrl := &controllers.VideoController{App: appCtx}

	g := e.Group("/api")

	g.GET("/video-info", videoCtrl.VideoInfo)
	g.GET("/download", videoCtrl.Download)
	g.GET("/download-status/:handle", videoCtrl.Status)
	g.GET("/get-file/:handle", videoCtrl.GetFile)
	g.GET("/direct-download/:video_id/:format_id", videoCtrl.DirectDownload)
	g.GET("/proxy-test", videoCtrl.ProxyTest)
	g.GET("/health", videoCtrl.Health)
	g.GET("/history", videoCtrl.History)
}
