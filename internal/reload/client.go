package reload

// ClientScript is served at /livereload.js and injected into HTML pages by the
// dev server. Style signals re-fetch stylesheets in place; anything else
// reloads the page.
const ClientScript = `(() => {
  if (window.__ASSETFLOW_LR__) return;
  window.__ASSETFLOW_LR__ = true;
  function refreshStyles() {
    const stamp = Date.now();
    document.querySelectorAll('link[rel="stylesheet"]').forEach((link) => {
      const url = new URL(link.href, location.href);
      if (url.origin !== location.origin) return;
      url.searchParams.set('livereload', stamp);
      const next = link.cloneNode();
      next.href = url.toString();
      next.onload = () => link.remove();
      link.after(next);
    });
  }
  function connect() {
    const es = new EventSource('/livereload');
    es.onmessage = (e) => {
      let sig;
      try { sig = JSON.parse(e.data); } catch (_) { return; }
      if (sig.scope === 'style') {
        console.log('[assetflow] styles changed, injecting');
        refreshStyles();
        return;
      }
      console.log('[assetflow] change detected, reloading');
      location.reload();
    };
    es.onerror = () => {
      console.warn('[assetflow] livereload error - retrying');
      es.close();
      setTimeout(connect, 2000);
    };
  }
  connect();
})();
`
