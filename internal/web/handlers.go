package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/offworldlabs/retina-gui/internal/apply"
	"github.com/offworldlabs/retina-gui/internal/audit"
	"github.com/offworldlabs/retina-gui/internal/form"
	"github.com/offworldlabs/retina-gui/internal/layered"
	"github.com/offworldlabs/retina-gui/internal/sshkeys"
	"github.com/offworldlabs/retina-gui/internal/update"
)

type indexData struct {
	NodeID     string
	SSHKeys    []string
	Error      string
	System     any
	Audit      []audit.Event
	Installed  bool
	MergedPath string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, "")
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, errMsg string) {
	data := indexData{
		NodeID:     "Unknown",
		Error:      errMsg,
		Installed:  s.runner.Installed(),
		MergedPath: s.store.MergedPath(),
	}

	merged, err := s.store.LoadMerged()
	if err != nil {
		s.log.Error("loading merged config", slog.String("error", err.Error()))
	} else if id, ok := layered.Get(merged, "network.node_id"); ok {
		if str, ok := id.(string); ok && str != "" {
			data.NodeID = str
		}
	}

	keys, err := s.keys.List()
	if err != nil {
		s.log.Error("listing ssh keys", slog.String("error", err.Error()))
	}
	data.SSHKeys = keys

	if s.system != nil {
		data.System = s.system.Collect()
	}
	if s.audit != nil {
		if events, err := s.audit.Recent(r.Context(), 10); err == nil {
			data.Audit = events
		}
	}

	s.render(w, "index.html", data)
}

type configPageData struct {
	Installed bool
	Sections  []form.SectionDisplay
	Saved     bool
}

func (s *Server) handleConfigPage(w http.ResponseWriter, r *http.Request) {
	if !s.runner.Installed() {
		s.render(w, "config.html", configPageData{Installed: false})
		return
	}

	merged, err := s.store.LoadMerged()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.render(w, "config.html", configPageData{
		Installed: true,
		Sections:  form.Sections(s.registry, merged),
		Saved:     r.URL.Query().Get("saved") == "1",
	})
}

func (s *Server) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form data", http.StatusBadRequest)
		return
	}

	raw := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		raw[k] = r.PostForm.Get(k)
	}
	decoded := form.DecodeFlat(raw)

	// Group decoded values by declared section. Unknown keys are dropped:
	// the form only ever submits registry fields.
	bySection := make(map[string]map[string]any)
	for key, v := range decoded {
		sec, f, ok := s.registry.FieldByFlatKey(key)
		if !ok {
			continue
		}
		if bySection[sec.Name] == nil {
			bySection[sec.Name] = make(map[string]any)
		}
		bySection[sec.Name][f.Name] = v
	}
	// A checkbox-only section submits nothing when every box is unchecked;
	// raw keys mark submission even when all values decoded empty.
	for key := range raw {
		if sec, _, ok := s.registry.FieldByFlatKey(key); ok && bySection[sec.Name] == nil {
			bySection[sec.Name] = make(map[string]any)
		}
	}

	names := make([]string, 0, len(bySection))
	for name := range bySection {
		names = append(names, name)
	}
	sort.Strings(names)

	validated := make(map[string]map[string]any, len(names))
	errs := make(form.ErrorMap)
	for _, name := range names {
		sec, _ := s.registry.Section(name)
		typed, sectionErrs := form.ValidateSection(sec, bySection[name])
		for k, v := range sectionErrs {
			errs[k] = v
		}
		if typed != nil {
			validated[name] = typed
		}
	}

	if len(errs) > 0 {
		merged, err := s.store.LoadMerged()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		sections := form.Sections(s.registry, merged)
		form.ApplyRaw(sections, raw, errs)
		s.render(w, "config.html", configPageData{Installed: true, Sections: sections})
		return
	}

	for _, name := range names {
		sec, _ := s.registry.Section(name)
		if _, err := s.store.SaveSection(sec, validated[name]); err != nil {
			s.log.Error("saving section",
				slog.String("section", name), slog.String("error", err.Error()))
			s.recordAudit(r.Context(), audit.KindConfigSave, name, false)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	s.recordAudit(r.Context(), audit.KindConfigSave, strings.Join(names, ","), true)
	s.log.Info("config saved", slog.String("sections", strings.Join(names, ",")))

	http.Redirect(w, r, "/config?saved=1", http.StatusSeeOther)
}

type applyReply struct {
	Success bool   `json:"success"`
	Phase   string `json:"phase,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleConfigApply(w http.ResponseWriter, r *http.Request) {
	if !s.runner.Installed() {
		writeJSON(w, http.StatusBadRequest, applyReply{
			Success: false,
			Error:   "retina-node not installed",
		})
		return
	}

	if err := s.runner.Apply(r.Context()); err != nil {
		reply := applyReply{Success: false, Error: err.Error()}
		var applyErr *apply.Error
		if errors.As(err, &applyErr) {
			reply.Phase = string(applyErr.Phase)
		}
		s.recordAudit(r.Context(), audit.KindConfigApply, reply.Error, false)
		writeJSON(w, http.StatusInternalServerError, reply)
		return
	}

	s.recordAudit(r.Context(), audit.KindConfigApply, "", true)
	writeJSON(w, http.StatusOK, applyReply{Success: true})
}

func (s *Server) handleSSHKeyAdd(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PostFormValue("ssh_key"))
	if key == "" || !sshkeys.IsValid(key) {
		s.renderIndex(w, r, "Invalid SSH key format")
		return
	}
	if err := s.keys.Add(key); err != nil {
		s.log.Error("adding ssh key", slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.recordAudit(r.Context(), audit.KindSSHKeyAdd, keyComment(key), true)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSSHKeyDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PostFormValue("ssh_key")
	if key != "" {
		if err := s.keys.Remove(key); err != nil {
			s.log.Error("removing ssh key", slog.String("error", err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.recordAudit(r.Context(), audit.KindSSHKeyRemove, keyComment(key), true)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSystem(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.system.Collect())
}

type updateCheckReply struct {
	OwlOSVersion      string `json:"owl_os_version,omitempty"`
	RetinaNodeVersion string `json:"retina_node_version,omitempty"`
	LatestArtifact    string `json:"latest_artifact,omitempty"`
	LatestArtifactID  string `json:"latest_artifact_id,omitempty"`
	Available         bool   `json:"available"`
	Error             string `json:"error,omitempty"`
}

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	reply := updateCheckReply{}
	reply.OwlOSVersion, reply.RetinaNodeVersion = s.mender.Versions(r.Context())

	artifacts, err := s.mender.ListArtifacts(r.Context())
	if err != nil {
		reply.Error = err.Error()
		writeJSON(w, http.StatusBadGateway, reply)
		return
	}
	if latest, ok := update.FindLatestStable(artifacts); ok {
		reply.LatestArtifact = latest.Name
		reply.LatestArtifactID = latest.ID
		// The provides entry carries the installed artifact name; a
		// fresh bootstrap has none, so any stable artifact counts.
		reply.Available = latest.Name != reply.RetinaNodeVersion
	}
	writeJSON(w, http.StatusOK, reply)
}

type updateInstallReply struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleUpdateInstall(w http.ResponseWriter, r *http.Request) {
	artifactID := r.PostFormValue("artifact_id")
	if artifactID == "" {
		writeJSON(w, http.StatusBadRequest, updateInstallReply{Success: false, Error: "artifact_id required"})
		return
	}

	url, err := s.mender.DownloadURL(r.Context(), artifactID)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, updateInstallReply{Success: false, Error: err.Error()})
		return
	}

	installCtx, cancel := context.WithTimeout(r.Context(), s.cfg.Mender.InstallTimeout)
	defer cancel()
	if err := s.mender.Install(installCtx, url); err != nil {
		s.recordAudit(r.Context(), audit.KindUpdateInstall, artifactID, false)
		writeJSON(w, http.StatusInternalServerError, updateInstallReply{Success: false, Error: err.Error()})
		return
	}

	s.recordAudit(r.Context(), audit.KindUpdateInstall, artifactID, true)
	writeJSON(w, http.StatusOK, updateInstallReply{Success: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// keyComment returns the trailing comment of a key line for audit detail,
// never the key material itself.
func keyComment(key string) string {
	parts := strings.Fields(key)
	if len(parts) >= 3 {
		return parts[2]
	}
	return ""
}
