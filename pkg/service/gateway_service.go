package service

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/kennybix/Shuttle/pkg/event"
	"github.com/kennybix/Shuttle/pkg/message"
	"github.com/kennybix/Shuttle/pkg/models"
	"github.com/kennybix/Shuttle/pkg/service/fs"
	"github.com/kennybix/Shuttle/pkg/utils"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

// Gateway owns the WebSocket surface. Each connection gets its own
// registry session; commands arrive as JSON messages and results flow
// back as events through the session's single ordered writer.
type Gateway struct {
	logger    *slog.Logger
	registry  *Registry
	files     *FileService
	transfers *Transferrer
	maxInline int64
}

func NewGateway(registry *Registry, files *FileService, transfers *Transferrer, maxInline int64) *Gateway {
	return &Gateway{
		logger:    utils.GetLogger(),
		registry:  registry,
		files:     files,
		transfers: transfers,
		maxInline: maxInline,
	}
}

// HandleWS upgrades the request and runs the session until the socket
// closes. The session and its transport are torn down on every exit path.
func (g *Gateway) HandleWS(c *gin.Context) {
	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			g.logger.Error("WebSocket upgrade error", "status", status, "reason", reason)
			http.Error(w, reason.Error(), status)
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		g.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			g.logger.Debug("Failed to close websocket connection", "error", err)
		}
	}()

	// Inline uploads arrive base64-encoded inside the message, so the
	// read limit needs headroom above the raw byte cap.
	conn.SetReadLimit(g.maxInline * 2)
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		return nil
	})

	session := g.registry.CreateSession(c.Request.Context())
	defer g.registry.Remove(session.ID)

	logger := g.logger.With("sessionID", session.ID)
	logger.Info("gateway session opened", "remote", c.Request.RemoteAddr)
	defer logger.Info("gateway session closed")

	go g.writePump(conn, session)

	roots := g.files.LocalRoots(c.Request.Context())
	session.Emit(event.InitialSetupEvent{
		SessionID:   session.ID,
		Platform:    roots.Platform,
		Roots:       roots.Roots,
		DefaultPath: roots.DefaultPath,
	})
	session.Log(models.LogLevelInfo, "Session established")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("websocket read ended", "error", err)
			}
			return
		}

		msg, err := message.ParseMessage(raw)
		if err != nil {
			logger.Warn("rejected inbound message", "error", err)
			session.Emit(event.ErrorEvent{Message: err.Error()})
			continue
		}
		g.dispatch(session, msg)
	}
}

// writePump is the session's only socket writer. Draining the event
// channel from one goroutine is what keeps per-session emission order.
func (g *Gateway) writePump(conn *websocket.Conn, session *ClientSession) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-session.Context().Done():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-session.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				g.logger.Debug("websocket write failed", "sessionID", session.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one parsed command. Listings and mutations run on the
// read loop; connects, transfers and command execution take their own
// goroutine so the session stays responsive while they stream.
func (g *Gateway) dispatch(s *ClientSession, m message.Message) {
	switch msg := m.(type) {
	case *message.Connect:
		go g.handleConnect(s, msg)
	case *message.Disconnect:
		g.handleDisconnect(s)
	case *message.ListLocal:
		g.handleListLocal(s, msg.Path, msg.IncludeHidden)
	case *message.ListRemote:
		g.emitRemoteListing(s, msg.Path, msg.IncludeHidden)
	case *message.LocalRoots:
		g.handleLocalRoots(s)
	case *message.Download:
		go g.handleDownload(s, msg)
	case *message.Upload:
		go g.handleUpload(s, msg)
	case *message.CreateDir:
		g.handleCreateDir(s, msg)
	case *message.Delete:
		g.handleDelete(s, msg)
	case *message.Exec:
		go g.handleExec(s, msg.Command)
	case *message.ClearLog:
		s.ClearLog()
	default:
		s.Emit(event.ErrorEvent{Message: fmt.Sprintf("unsupported message %q", m.MessageType())})
	}
}

func (g *Gateway) handleConnect(s *ClientSession, msg *message.Connect) {
	tr := s.Transport()

	// A connect on a live session replaces the existing connection.
	if tr.State() != StateDisconnected {
		if tr.Disconnect() {
			s.Emit(event.DisconnectedEvent{})
		}
	}

	host := strings.TrimSpace(msg.Host)
	tr.OnDrop(func() {
		s.Log(models.LogLevelError, fmt.Sprintf("Connection to %s lost", host))
		s.Emit(event.DisconnectedEvent{})
	})

	s.Log(models.LogLevelInfo, fmt.Sprintf("Connecting to %s@%s...", msg.Username, host))
	err := tr.Connect(s.Context(), ConnectOptions{
		Host:       host,
		Port:       msg.Port,
		Username:   msg.Username,
		PrivateKey: []byte(msg.PrivateKey),
		Passphrase: msg.Passphrase,
	})
	if err != nil {
		s.Log(models.LogLevelError, fmt.Sprintf("Connection failed: %v", err))
		s.Emit(event.ConnectErrorEvent{Message: err.Error()})
		return
	}

	s.Log(models.LogLevelSuccess, fmt.Sprintf("Connected to %s@%s", tr.Username(), tr.Host()))
	s.Emit(event.ConnectedEvent{Host: tr.Host(), Username: tr.Username()})

	g.emitRemoteListing(s, "/home/"+tr.Username(), false)
}

func (g *Gateway) handleDisconnect(s *ClientSession) {
	if s.Transport().Disconnect() {
		s.Log(models.LogLevelInfo, "Disconnected")
		s.Emit(event.DisconnectedEvent{})
	}
}

func (g *Gateway) handleListLocal(s *ClientSession, p string, includeHidden bool) {
	resp, parent, fellBack, err := g.files.ListLocal(s.Context(), p, includeHidden)
	if err != nil {
		s.Log(models.LogLevelError, fmt.Sprintf("Local listing failed: %v", err))
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}
	if fellBack {
		s.Log(models.LogLevelWarning, fmt.Sprintf("Cannot list %s, showing default location", p))
	}
	s.Emit(event.LocalListingEvent{Path: resp.Path, Parent: parent, Entries: resp.Entries})
}

// emitRemoteListing sends one remote listing, or a scoped error event and
// no listing when the transport is down or the path cannot be read.
func (g *Gateway) emitRemoteListing(s *ClientSession, p string, includeHidden bool) {
	cli, err := s.Transport().SFTP()
	if err != nil {
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}
	resp, parent, err := g.files.ListRemote(s.Context(), cli, p, includeHidden)
	if err != nil {
		s.Log(models.LogLevelError, fmt.Sprintf("Remote listing failed: %v", err))
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}
	s.Emit(event.RemoteListingEvent{Path: resp.Path, Parent: parent, Entries: resp.Entries})
}

func (g *Gateway) handleLocalRoots(s *ClientSession) {
	info := g.files.LocalRoots(s.Context())
	s.Emit(event.InitialSetupEvent{
		SessionID:   s.ID,
		Platform:    info.Platform,
		Roots:       info.Roots,
		DefaultPath: info.DefaultPath,
	})
}

func (g *Gateway) handleCreateDir(s *ClientSession, msg *message.CreateDir) {
	fsys, err := g.originFS(s, msg.Origin)
	if err != nil {
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}
	if err := g.files.CreateDir(s.Context(), fsys, msg.Path); err != nil {
		s.Log(models.LogLevelError, fmt.Sprintf("Create directory failed: %v", err))
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}
	s.Log(models.LogLevelSuccess, fmt.Sprintf("Created directory %s", msg.Path))
	s.Emit(event.DirCreatedEvent{Origin: msg.Origin, Path: msg.Path})
	g.refreshParent(s, msg.Origin, msg.Path)
}

func (g *Gateway) handleDelete(s *ClientSession, msg *message.Delete) {
	fsys, err := g.originFS(s, msg.Origin)
	if err != nil {
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}
	if err := g.files.Delete(s.Context(), fsys, msg.Path, msg.EntryType); err != nil {
		s.Log(models.LogLevelError, fmt.Sprintf("Delete failed: %v", err))
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}
	s.Log(models.LogLevelSuccess, fmt.Sprintf("Deleted %s", msg.Path))
	s.Emit(event.FileDeletedEvent{Origin: msg.Origin, Path: msg.Path})
	g.refreshParent(s, msg.Origin, msg.Path)
}

func (g *Gateway) handleDownload(s *ClientSession, msg *message.Download) {
	cli, err := s.Transport().SFTP()
	if err != nil {
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}

	transferID := uuid.NewString()
	name := path.Base(msg.RemotePath)
	s.Log(models.LogLevelInfo, fmt.Sprintf("Downloading %s...", name))

	dest, err := g.transfers.Download(s.Context(), cli, msg.RemotePath, msg.LocalPath,
		g.progressFunc(s, transferID, models.DirectionDownload, name))
	if err != nil {
		s.Log(models.LogLevelError, fmt.Sprintf("Download of %s failed: %v", name, err))
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}

	s.Log(models.LogLevelSuccess, fmt.Sprintf("Downloaded %s to %s", name, dest))
	s.Emit(event.DownloadCompleteEvent{TransferID: transferID, File: name, LocalPath: dest})
	g.handleListLocal(s, parentPath(dest), false)
}

func (g *Gateway) handleUpload(s *ClientSession, msg *message.Upload) {
	cli, err := s.Transport().SFTP()
	if err != nil {
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}

	src := UploadSource{LocalPath: msg.LocalPath}
	if msg.LocalPath == "" {
		content, err := base64.StdEncoding.DecodeString(msg.Content)
		if err != nil {
			s.Emit(event.ErrorEvent{Message: "invalid upload content encoding"})
			return
		}
		if int64(len(content)) > g.maxInline {
			s.Emit(event.ErrorEvent{Message: fmt.Sprintf("upload exceeds the %d byte limit", g.maxInline)})
			return
		}
		src.InlineName = msg.Name
		src.InlineContent = content
	}

	name := src.DisplayName()
	remotePath := msg.RemotePath
	if strings.HasSuffix(remotePath, "/") {
		remotePath = path.Join(remotePath, name)
	}

	transferID := uuid.NewString()
	s.Log(models.LogLevelInfo, fmt.Sprintf("Uploading %s...", name))

	err = g.transfers.Upload(s.Context(), cli, src, remotePath,
		g.progressFunc(s, transferID, models.DirectionUpload, name))
	if err != nil {
		s.Log(models.LogLevelError, fmt.Sprintf("Upload of %s failed: %v", name, err))
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}

	s.Log(models.LogLevelSuccess, fmt.Sprintf("Uploaded %s to %s", name, remotePath))
	s.Emit(event.UploadCompleteEvent{TransferID: transferID, File: name, RemotePath: remotePath})
	g.emitRemoteListing(s, parentPath(remotePath), false)
}

func (g *Gateway) handleExec(s *ClientSession, command string) {
	if strings.TrimSpace(command) == "" {
		s.Emit(event.ErrorEvent{Message: "empty command"})
		return
	}

	s.Log(models.LogLevelInfo, fmt.Sprintf("Executing: %s", command))
	exitCode, fullOutput, err := s.Transport().Exec(s.Context(), command,
		func(chunk string) { s.Emit(event.CommandOutputEvent{Chunk: chunk}) },
		func(chunk string) { s.Emit(event.CommandErrorEvent{Chunk: chunk}) },
	)
	if err != nil {
		s.Log(models.LogLevelError, fmt.Sprintf("Command failed: %v", err))
		s.Emit(event.ErrorEvent{Message: err.Error()})
		return
	}

	level := models.LogLevelSuccess
	if exitCode != 0 {
		level = models.LogLevelWarning
	}
	s.Log(level, fmt.Sprintf("Command exited with code %d", exitCode))
	s.Emit(event.CommandCompleteEvent{ExitCode: exitCode, FullOutput: fullOutput})
}

func (g *Gateway) progressFunc(s *ClientSession, transferID string, direction models.TransferDirection, name string) ProgressFunc {
	return func(pct int, bytesSoFar, total int64) {
		s.Emit(event.TransferProgressEvent{
			TransferID: transferID,
			Direction:  direction,
			File:       name,
			Percent:    pct,
			BytesSoFar: bytesSoFar,
			Total:      total,
		})
	}
}

// originFS resolves a mutation target to its filesystem. Remote origins
// need a live transport.
func (g *Gateway) originFS(s *ClientSession, origin models.Origin) (fs.FileSystem, error) {
	if origin == models.OriginRemote {
		cli, err := s.Transport().SFTP()
		if err != nil {
			return nil, err
		}
		return fs.NewSFTPFileSystem(cli)
	}
	return g.files.Local(), nil
}

// refreshParent emits one listing of the directory holding p, on the side
// the mutation happened.
func (g *Gateway) refreshParent(s *ClientSession, origin models.Origin, p string) {
	if origin == models.OriginRemote {
		g.emitRemoteListing(s, parentPath(p), false)
		return
	}
	g.handleListLocal(s, parentPath(p), false)
}
