package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"ani-viewer/internal/config"
	"ani-viewer/internal/handlers"
	"ani-viewer/internal/logging"
	"ani-viewer/internal/server"

	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/websocket"
	"github.com/spf13/pflag"
)

//go:embed static/*
var staticFS embed.FS

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("ani-server", pflag.ContinueOnError)
	flags := config.BindFlags(flagSet)
	openBrowserFlag := flagSet.Bool("open", false, "open the browser after start")
	logFormat := flagSet.String("log-format", string(logging.FormatText), "log format: text or json")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	cfg, err := flags.Resolve()
	if err != nil {
		return err
	}

	logging.SetOutput(os.Stdout, logging.Format(*logFormat))
	if cfg.Debug {
		logging.SetDebugMode(true)
	}

	// 查找可用端口
	actualPort := findAvailablePort(cfg.Host, cfg.Port)

	fmt.Println("============================================================")
	fmt.Println("动画库查看器")
	fmt.Println("============================================================")
	fmt.Printf("库目录: %s\n", cfg.LibraryPath)
	fmt.Printf("监听地址: http://localhost:%d\n", actualPort)
	fmt.Println("============================================================")

	srv := server.NewLibraryServer(cfg)
	if err := srv.Load(); err != nil {
		logging.LogWarn("[Library] 初始目录加载失败，可在页面中重新设置", "error", err)
	} else {
		go srv.BuildSummaryCache()
	}

	app := iris.New()
	app.Logger().SetLevel("warn")

	// CORS
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", "*")
		ctx.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.Header("Access-Control-Allow-Headers", "Content-Type")
		if ctx.Method() == "OPTIONS" {
			ctx.StatusCode(204)
			return
		}
		ctx.Next()
	})

	// 注册 API 路由
	h := server.NewHandlers(srv)
	server.RegisterRoutes(app, h)

	// 命名空间形式的帧流
	wsHandler := handlers.NewWebSocketHandler(func() *server.LibraryServer { return h.Server() })
	wsServer := websocket.New(websocket.DefaultGorillaUpgrader, wsHandler.RegisterEvents())
	app.Get("/api/v1/ns", websocket.Handler(wsServer))

	// 嵌入的静态文件
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		logging.LogWarn("无法加载嵌入的静态文件", "error", err)
	} else {
		app.HandleDir("/", http.FS(staticSub), iris.DirOptions{
			IndexName: "index.html",
			SPA:       true,
		})
	}

	// 优雅关闭
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		fmt.Println("\n正在关闭...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		app.Shutdown(ctx)
	}()
	defer func() { h.Server().Close() }()

	if *openBrowserFlag {
		go func() {
			time.Sleep(500 * time.Millisecond)
			openBrowser(fmt.Sprintf("http://localhost:%d", actualPort))
		}()
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(actualPort))
	logging.LogInfo("服务器已启动", "addr", addr)
	if err := app.Listen(addr, iris.WithoutServerError(iris.ErrServerClosed)); err != nil {
		return fmt.Errorf("服务器错误: %w", err)
	}
	return nil
}

// findAvailablePort 查找可用端口，如果指定端口被占用则递增
func findAvailablePort(host string, startPort int) int {
	for port := startPort; port < startPort+100; port++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
		if err == nil {
			ln.Close()
			return port
		}
	}
	return startPort // 回退到原始端口
}

// openBrowser 打开默认浏览器
func openBrowser(url string) {
	var err error
	switch runtime.GOOS {
	case "darwin":
		err = exec.Command("open", url).Start()
	case "linux":
		err = exec.Command("xdg-open", url).Start()
	case "windows":
		err = exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	}
	if err != nil {
		fmt.Printf("无法自动打开浏览器，请手动访问: %s\n", url)
	}
}
