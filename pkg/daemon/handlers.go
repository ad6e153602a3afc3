package daemon

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/eaglewings/perch/pkg/config"
	"github.com/eaglewings/perch/pkg/version"
)

func getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, mon.Status())
}

func getBatteryInfo(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, mon.BatteryInfo())
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

// setConfig merges a partial config document. Absent fields keep their
// current values; the merged result is validated before anything is
// committed or saved.
func setConfig(c *gin.Context) {
	var partial config.RawFileConfig
	if err := c.BindJSON(&partial); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := conf.Apply(&partial); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if partial.PatrolSchedule != nil {
		reschedulePatrol(conf.PatrolSchedule())
	}

	logrus.WithFields(conf.LogrusFields()).Info("config updated")

	c.IndentedJSON(http.StatusCreated, "ok")
}

// postSearch runs a charging spot search synchronously and reports
// whether the vehicle reached the spot.
func postSearch(c *gin.Context) {
	found := mon.ManualChargingSearch()
	c.IndentedJSON(http.StatusOK, found)
}

func postResetSpot(c *gin.Context) {
	mon.ResetChargingSpot()
	c.IndentedJSON(http.StatusCreated, "ok")
}

// putCharging applies the external docked signal.
func putCharging(c *gin.Context) {
	var docked bool
	if err := c.BindJSON(&docked); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	mon.SetCharging(docked)
	logrus.Infof("set charging (docked) to %t", docked)

	c.IndentedJSON(http.StatusCreated, "ok")
}

func getPatrol(c *gin.Context) {
	nextRun, running := sched.Status()
	c.IndentedJSON(http.StatusOK, gin.H{
		"running": running,
		"nextRun": nextRun,
	})
}

func postPatrolSkip(c *gin.Context) {
	if err := sched.Skip(); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "ok")
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

var wsUpgrader = websocket.Upgrader{
	// Clients connect over the unix socket, not a browser origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

// getEvents upgrades to a websocket and streams hub events until the
// client disconnects. Slow clients miss events instead of blocking the
// publishers.
func getEvents(c *gin.Context) {
	ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.Errorf("websocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := ws.WriteJSON(ev); err != nil {
				logrus.Debugf("websocket write failed: %v", err)
				return
			}
		case <-closed:
			return
		}
	}
}
