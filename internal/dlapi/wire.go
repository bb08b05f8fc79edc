package dlapi

// Request headers understood by the filesystem service.
const (
	HeaderSession = "X-Datenlord-Session"
	HeaderToken   = "X-Service-Token"
)

// Operation endpoints. Every operation is a POST carrying a JSON body.
const (
	PathStat       = "/stat"
	PathReadDir    = "/read_dir"
	PathMkdir      = "/mkdir"
	PathCreateFile = "/create_file"
	PathWriteFile  = "/write_file"
	PathReadFile   = "/read_file"
	PathRename     = "/rename_path"
	PathDeleteDir  = "/delete_dir"
	PathDeleteFile = "/delete_file"
	PathStatFs     = "/statfs"
	PathHealth     = "/health"
	PathMetrics    = "/metrics"
)

type PathRequest struct {
	Path string `json:"path"`
}

type RenameRequest struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
}

type DeleteDirRequest struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive"`
}

type WriteRequest struct {
	Path       string `json:"path"`
	DataBase64 string `json:"data_base64"`
	Checksum   string `json:"checksum"`
}

// Payload is a file body in transit.
type Payload struct {
	DataBase64 string `json:"data_base64"`
	Checksum   string `json:"checksum"`
}

type StatFsRequest struct{}

// Health is the body returned by the health endpoint.
type Health struct {
	Status string `json:"status"`
}
